// Package app assembles the pipeline and its stores from a Config. Both the
// HTTP service and the CLI start here.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"media-insights-go/internal/blob"
	"media-insights-go/internal/config"
	"media-insights-go/internal/extractor"
	"media-insights-go/internal/logger"
	"media-insights-go/internal/media"
	"media-insights-go/internal/pipeline"
	"media-insights-go/internal/segments"
	"media-insights-go/internal/transcription"
)

type App struct {
	Config     config.Config
	Transcoder media.Resolution
	Blobs      blob.Downloader
	Segments   segments.Store
	Pipeline   *pipeline.Pipeline
}

// Resolve picks the transcoder for cfg. Called once per process.
func Resolve(cfg config.Config) media.Resolution {
	exe, _ := os.Executable()
	return media.ResolveTranscoder(media.ResolveOptions{
		ExplicitPath: cfg.FFmpegPath,
		BundleDir:    cfg.FFmpegBundleDir,
		Platform:     media.CurrentPlatform(),
		Executable:   exe,
	})
}

// Build connects the configured backends and wires a pipeline over them.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	log := logger.Component("app")

	res := Resolve(cfg)
	log.WithFields(logrus.Fields{
		"source": res.Source,
		"binary": res.Binary,
		"detail": res.Detail,
	}).Info("transcoder resolved")

	blobs, err := blob.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	store, err := segments.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}
	log.WithFields(logrus.Fields{
		"blob_backend":    cfg.BlobBackend,
		"segment_backend": cfg.SegmentBackend,
	}).Info("backends ready")

	tr := transcription.New(transcription.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.TranscribeModel,
		HTTPTimeout: cfg.HTTPTimeout,
	})
	an := extractor.New(extractor.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.AnalysisModel,
	})

	return &App{
		Config:     cfg,
		Transcoder: res,
		Blobs:      blobs,
		Segments:   store,
		Pipeline: pipeline.New(
			blobs,
			media.NewAudioExtractor(res.Transcoder, cfg.ScratchDir),
			tr,
			store,
			an,
		),
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.Segments == nil {
		return nil
	}
	return a.Segments.Close()
}
