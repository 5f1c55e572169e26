package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-insights-go/internal/app"
	"media-insights-go/internal/config"
	"media-insights-go/internal/logger"
)

func main() {
	cfg := config.Load() // loads .env

	log := logger.New()
	log.WithField("service", "media-insights-go").Info("starting service")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("configuration incomplete")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer a.Close()

	s := &server{
		runner:   a.Pipeline,
		segments: a.Segments,
		timeout:  cfg.PipelineTimeout,
		batchDir: cfg.BatchDir,
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PipelineTimeout + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("stopped")
}
