// Package pipeline sequences download, size strategy, audio extraction,
// transcription, segment persistence and analysis for one media file.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"media-insights-go/internal/blob"
	"media-insights-go/internal/logger"
	"media-insights-go/internal/media"
	"media-insights-go/internal/strategy"
	"media-insights-go/internal/types"
)

// State names the steps of one run, used in logs.
type State string

const (
	StateSelecting    State = "selecting"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StatePersisting   State = "persisting"
	StateAnalyzing    State = "analyzing"
	StateDone         State = "done"
	StateRejected     State = "rejected"
	StateFailed       State = "failed"
)

const extractedMIME = "audio/mpeg"

type Extractor interface {
	Extract(ctx context.Context, video []byte, fileName string) (types.ExtractionOutcome, error)
}

type Transcriber interface {
	TranscribeText(ctx context.Context, audio []byte, fileName, mimeType string) (string, error)
	TranscribeSegmented(ctx context.Context, audio []byte, fileName, mimeType string) (types.TranscriptionOutcome, error)
}

type SegmentWriter interface {
	ReplaceSegments(ctx context.Context, assetID string, segs []types.Segment) error
}

type Analyzer interface {
	Analyze(ctx context.Context, transcript, additionalContext string) (types.AnalysisResult, error)
}

// Pipeline holds the injected collaborators. It keeps no per-run state, so
// one value serves concurrent runs.
type Pipeline struct {
	blobs       blob.Downloader
	extractor   Extractor
	transcriber Transcriber
	segments    SegmentWriter
	analyzer    Analyzer
	log         *logrus.Entry
}

// New wires a pipeline. segments may be nil, which disables persistence.
func New(blobs blob.Downloader, ex Extractor, tr Transcriber, segments SegmentWriter, an Analyzer) *Pipeline {
	return &Pipeline{
		blobs:       blobs,
		extractor:   ex,
		transcriber: tr,
		segments:    segments,
		analyzer:    an,
		log:         logger.Component("pipeline"),
	}
}

// Run processes one request end to end. Every error it returns is a *Error.
func (p *Pipeline) Run(ctx context.Context, req types.AnalyzeRequest) (types.AnalysisResult, error) {
	log := p.log.WithFields(logrus.Fields{
		"asset_id":  req.AssetID,
		"file_name": req.FileName,
		"file_type": req.FileType,
	})

	if strings.TrimSpace(req.MediaLocationKey) == "" {
		return types.AnalysisResult{}, newError(KindInvalidRequest, "mediaLocationKey is required", nil)
	}
	video := strategy.IsVideo(req.FileType, req.FileName)

	// A storage size hint lets oversized files be refused before download.
	if sizer, ok := p.blobs.(blob.Sizer); ok {
		hint, err := sizer.Size(ctx, req.MediaLocationKey)
		switch {
		case err != nil:
			log.WithError(err).Debug("size hint unavailable")
		case hint > strategy.MaxProcessable:
			log.WithFields(logrus.Fields{"state": StateRejected, "size_hint": size(hint)}).Warn("rejected from size hint")
			return types.AnalysisResult{}, sizeExceeded(hint, req.FileName, req.FileType, video)
		}
	}

	data, err := p.blobs.Download(ctx, req.MediaLocationKey)
	if err != nil {
		log.WithError(err).WithField("state", StateFailed).Error("download failed")
		return types.AnalysisResult{}, newError(KindDownloadFailed, "could not download "+req.MediaLocationKey, err)
	}
	ref := types.MediaReference{
		LocationKey: req.MediaLocationKey,
		FileName:    req.FileName,
		FileType:    req.FileType,
		SizeBytes:   int64(len(data)),
	}

	strat := strategy.SelectFile(ref.SizeBytes, ref.FileType, ref.FileName)
	log = log.WithFields(logrus.Fields{"size": size(ref.SizeBytes), "strategy": strat})
	log.WithField("state", StateSelecting).Info("strategy selected")

	var outcome types.ExtractionOutcome
	mimeType := ref.FileType
	var extractErr error

	switch strat {
	case strategy.Reject:
		log.WithField("state", StateRejected).Warn("file rejected")
		return types.AnalysisResult{}, sizeExceeded(ref.SizeBytes, ref.FileName, ref.FileType, video)

	case strategy.ExtractThenTranscribe:
		log.WithField("state", StateExtracting).Info("extracting audio track")
		outcome, extractErr = p.extract(ctx, data, ref.FileName)
		if extractErr == nil {
			mimeType = extractedMIME
			log.WithFields(logrus.Fields{
				"audio_size": size(int64(len(outcome.AudioBytes))),
				"ratio":      media.Ratio(len(data), len(outcome.AudioBytes)),
			}).Info("audio extracted")
			break
		}
		if ref.SizeBytes > strategy.FallbackLimit {
			log.WithError(extractErr).WithField("state", StateFailed).Error("extraction failed, file too large for direct transcription")
			return types.AnalysisResult{}, extractionFailed(ref.SizeBytes, ref.FileName, extractErr)
		}
		log.WithError(extractErr).Warn("extraction failed, trying direct transcription of original")
		outcome = types.ExtractionOutcome{AudioBytes: data, SourceFileName: ref.FileName}

	default:
		outcome = types.ExtractionOutcome{AudioBytes: data, SourceFileName: ref.FileName}
	}

	log.WithFields(logrus.Fields{"state": StateTranscribing, "extracted": outcome.Extracted}).Info("transcribing")
	tr, err := p.transcribe(ctx, outcome, mimeType, req.AssetID != "")
	if err != nil {
		log.WithError(err).WithField("state", StateFailed).Error("transcription failed")
		if extractErr != nil {
			// the fallback did not rescue a failed extraction
			return types.AnalysisResult{}, extractionFailed(ref.SizeBytes, ref.FileName, errors.Join(extractErr, err))
		}
		return types.AnalysisResult{}, newError(KindTranscriptionBackend, "transcription service failed", err)
	}
	if strings.TrimSpace(tr.FullText) == "" {
		log.WithField("state", StateFailed).Warn("no speech detected")
		return types.AnalysisResult{}, newError(KindNoSpeech, "no speech was detected in "+displayName(ref.FileName), nil)
	}

	if req.AssetID != "" && p.segments != nil {
		log.WithFields(logrus.Fields{"state": StatePersisting, "segments": len(tr.Segments)}).Info("persisting segments")
		p.persist(ctx, log, req.AssetID, tr.Segments)
	}

	log.WithField("state", StateAnalyzing).Info("analyzing transcript")
	result, err := p.analyzer.Analyze(ctx, tr.FullText, req.AdditionalContext)
	if err != nil {
		log.WithError(err).WithField("state", StateFailed).Error("analysis failed")
		return types.AnalysisResult{}, newError(KindAnalysisBackend, "analysis service failed", err)
	}

	log.WithFields(logrus.Fields{"state": StateDone, "content_type": result.ContentType}).Info("pipeline complete")
	return result, nil
}

func (p *Pipeline) extract(ctx context.Context, data []byte, fileName string) (types.ExtractionOutcome, error) {
	out, err := p.extractor.Extract(ctx, data, fileName)
	if err != nil {
		return types.ExtractionOutcome{}, err
	}
	if n := int64(len(out.AudioBytes)); n > strategy.TranscribeLimit {
		return types.ExtractionOutcome{}, &media.ExtractionError{
			FileName: fileName,
			Err:      errors.New("extracted audio is " + size(n) + ", still over the " + size(strategy.TranscribeLimit) + " transcription limit"),
		}
	}
	return out, nil
}

func (p *Pipeline) transcribe(ctx context.Context, in types.ExtractionOutcome, mimeType string, segmented bool) (types.TranscriptionOutcome, error) {
	if segmented {
		return p.transcriber.TranscribeSegmented(ctx, in.AudioBytes, in.SourceFileName, mimeType)
	}
	text, err := p.transcriber.TranscribeText(ctx, in.AudioBytes, in.SourceFileName, mimeType)
	if err != nil {
		return types.TranscriptionOutcome{}, err
	}
	return types.TranscriptionOutcome{FullText: text}, nil
}

// persist is best-effort: failures are logged and never change the result.
func (p *Pipeline) persist(ctx context.Context, log *logrus.Entry, assetID string, segs []types.Segment) {
	owned := make([]types.Segment, len(segs))
	for i, s := range segs {
		s.AssetID = assetID
		owned[i] = s
	}
	if err := p.segments.ReplaceSegments(ctx, assetID, owned); err != nil {
		perr := newError(KindSegmentPersistence, "segments not saved for "+assetID, err)
		log.WithError(perr).Warn("segment persistence failed, continuing")
	}
}
