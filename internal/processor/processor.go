// Package processor wraps pipeline runs in a uniform result envelope for
// HTTP and batch callers.
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"media-insights-go/internal/actionable"
	"media-insights-go/internal/logger"
	"media-insights-go/internal/pipeline"
	"media-insights-go/internal/types"
)

// Runner is satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req types.AnalyzeRequest) (types.AnalysisResult, error)
}

// Result is returned by /analyze and written per row in batch reports.
type Result struct {
	Request     types.AnalyzeRequest   `json:"request"`
	Analysis    *types.AnalysisResult  `json:"analysis,omitempty"`
	ActionCard  *actionable.ActionCard `json:"action_card,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	ErrorKind   pipeline.Kind          `json:"error_kind,omitempty"`
	TimedOut    bool                   `json:"timed_out,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

func (r Result) OK() bool { return r.Error == "" }

// Process runs one request under timeout (none when timeout <= 0).
func Process(ctx context.Context, r Runner, req types.AnalyzeRequest, timeout time.Duration) Result {
	log := logger.Component("processor").WithFields(logrus.Fields{"key": req.MediaLocationKey, "asset_id": req.AssetID})
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res := Result{Request: req}
	analysis, err := r.Run(ctx, req)
	res.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		res.Error = err.Error()
		res.TimedOut = errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			res.ErrorKind = pe.Kind
			res.Remediation = pe.Remediation
		}
		log.WithError(err).WithField("duration_ms", res.DurationMs).Warn("processing failed")
		return res
	}

	card := actionable.Generate(analysis)
	res.Analysis = &analysis
	res.ActionCard = &card
	log.WithField("duration_ms", res.DurationMs).Info("processed")
	return res
}

// RunBatch processes requests one after another; progress, when set, is
// called after each.
func RunBatch(ctx context.Context, r Runner, reqs []types.AnalyzeRequest, timeout time.Duration, progress func(i int, res Result)) []Result {
	out := make([]Result, 0, len(reqs))
	for i, req := range reqs {
		if ctx.Err() != nil {
			res := Result{Request: req, Error: ctx.Err().Error()}
			out = append(out, res)
			if progress != nil {
				progress(i, res)
			}
			continue
		}
		res := Process(ctx, r, req, timeout)
		out = append(out, res)
		if progress != nil {
			progress(i, res)
		}
	}
	return out
}
