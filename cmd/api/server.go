package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"media-insights-go/internal/aggregator"
	"media-insights-go/internal/logger"
	"media-insights-go/internal/pipeline"
	"media-insights-go/internal/processor"
	"media-insights-go/internal/types"
	"media-insights-go/internal/workbook"
)

// segmentReader is the read side of segments.Store.
type segmentReader interface {
	ListSegments(ctx context.Context, assetID string) ([]types.Segment, error)
	Search(ctx context.Context, assetID, query string, limit int) ([]types.Segment, error)
}

// maxBatchRows bounds one POST /batch so the run fits a single response.
const maxBatchRows = 50

type server struct {
	runner   processor.Runner
	segments segmentReader
	timeout  time.Duration
	// batchDir roots manifest and report paths; empty disables POST /batch.
	batchDir string
}

type batchRequest struct {
	ManifestPath string `json:"manifestPath"`
	ReportPath   string `json:"reportPath,omitempty"`
}

type batchResponse struct {
	Summary    aggregator.Summary `json:"summary"`
	Results    []processor.Result `json:"results"`
	ReportPath string             `json:"report_path,omitempty"`
}

type segmentsResponse struct {
	AssetID  string          `json:"asset_id"`
	Query    string          `json:"query,omitempty"`
	Segments []types.Segment `json:"segments"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /assets/{assetId}/segments", s.handleSegments)
	mux.HandleFunc("POST /batch", s.handleBatch)
	return mux
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "analyze")

	var req types.AnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		reqLog.WithError(err).Warn("bad request body")
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.MediaLocationKey) == "" {
		reqLog.Warn("missing mediaLocationKey")
		http.Error(w, "missing mediaLocationKey", http.StatusBadRequest)
		return
	}
	reqLog = reqLog.WithFields(logrus.Fields{"key": req.MediaLocationKey, "asset_id": req.AssetID})
	reqLog.Info("analyze request received")

	res := processor.Process(r.Context(), s.runner, req, s.timeout)
	status := statusFor(res)
	reqLog.WithFields(logrus.Fields{
		"duration_ms": res.DurationMs,
		"status":      status,
		"error_kind":  res.ErrorKind,
	}).Info("analyze finished")
	writeJSON(w, status, res, reqLog)
}

func (s *server) handleSegments(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "segments")
	assetID := r.PathValue("assetId")
	q := r.URL.Query().Get("q")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		segs []types.Segment
		err  error
	)
	if q == "" {
		segs, err = s.segments.ListSegments(r.Context(), assetID)
		if err == nil && limit > 0 && len(segs) > limit {
			segs = segs[:limit]
		}
	} else {
		segs, err = s.segments.Search(r.Context(), assetID, q, limit)
	}
	if err != nil {
		reqLog.WithError(err).Error("segment lookup failed")
		http.Error(w, "segment lookup failed", http.StatusInternalServerError)
		return
	}
	if segs == nil {
		segs = []types.Segment{}
	}
	writeJSON(w, http.StatusOK, segmentsResponse{AssetID: assetID, Query: q, Segments: segs}, reqLog)
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "batch")
	if s.batchDir == "" {
		http.Error(w, "batch processing is not configured", http.StatusServiceUnavailable)
		return
	}

	var req batchRequest
	if err := decode(w, r, &req); err != nil || req.ManifestPath == "" {
		http.Error(w, "body must name manifestPath", http.StatusBadRequest)
		return
	}
	manifestPath, err := confine(s.batchDir, req.ManifestPath)
	if err != nil {
		reqLog.WithError(err).Warn("rejected manifest path")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reportPath := ""
	if req.ReportPath != "" {
		if reportPath, err = confine(s.batchDir, req.ReportPath); err != nil {
			reqLog.WithError(err).Warn("rejected report path")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	reqs, err := workbook.LoadManifest(manifestPath)
	if err != nil {
		reqLog.WithError(err).Warn("manifest load failed")
		http.Error(w, "manifest: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(reqs) > maxBatchRows {
		http.Error(w, fmt.Sprintf("manifest has %d rows, at most %d per request; use the CLI for larger batches", len(reqs), maxBatchRows), http.StatusRequestEntityTooLarge)
		return
	}
	reqLog = reqLog.WithField("manifest", req.ManifestPath).WithField("rows", len(reqs))

	// The server-wide write timeout covers one pipeline run; a batch needs
	// one per row.
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(time.Duration(len(reqs))*s.timeout + time.Minute)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
		reqLog.WithError(err).Warn("could not extend write deadline")
	}
	reqLog.Info("batch started")

	results := processor.RunBatch(r.Context(), s.runner, reqs, s.timeout, func(i int, res processor.Result) {
		reqLog.WithFields(logrus.Fields{"row": i + 1, "ok": res.OK()}).Debug("batch row done")
	})
	resp := batchResponse{Summary: aggregator.Aggregate(results), Results: results}
	if reportPath != "" {
		if err := workbook.WriteReport(reportPath, results, resp.Summary); err != nil {
			reqLog.WithError(err).Error("report write failed")
			http.Error(w, "report could not be written", http.StatusInternalServerError)
			return
		}
		resp.ReportPath = req.ReportPath
	}
	reqLog.WithFields(logrus.Fields{"succeeded": resp.Summary.Succeeded, "failed": resp.Summary.Failed}).Info("batch finished")
	writeJSON(w, http.StatusOK, resp, reqLog)
}

// confine resolves a client-supplied relative path under root, refusing
// absolute paths and any that climb out with "..".
func confine(root, p string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSpace(p))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("path %q must be relative to the batch directory", p)
	}
	return filepath.Join(root, rel), nil
}

// statusFor maps a result's error kind to the HTTP status.
func statusFor(res processor.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	if res.TimedOut {
		return http.StatusGatewayTimeout
	}
	switch res.ErrorKind {
	case pipeline.KindInvalidRequest:
		return http.StatusBadRequest
	case pipeline.KindSizeExceeded:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindNoSpeech, pipeline.KindExtractionFailed:
		return http.StatusUnprocessableEntity
	case pipeline.KindDownloadFailed, pipeline.KindTranscriptionBackend, pipeline.KindAnalysisBackend:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
