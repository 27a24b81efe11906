// Command etl serves on-demand NWM streamflow forecasts over HTTP and, when
// PUBLISH_REACHES is set, publishes each new forecast cycle for those reaches
// to Kafka.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/nwm-streamflow/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/nwm-streamflow/internal/adapter/kafka"
	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/download"
	"github.com/couchcryptid/nwm-streamflow/internal/forecast"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
	"github.com/couchcryptid/nwm-streamflow/internal/pipeline"
	"github.com/couchcryptid/nwm-streamflow/internal/storage"
)

// alwaysReady is the readiness check when no reaches are published.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser, err := storage.FromConfig(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to create storage backend", "error", err)
		os.Exit(1)
	}

	layout := domain.Layout{
		Bucket:        cfg.Bucket,
		ProductMarker: cfg.ProductMarker,
		Extension:     cfg.FileExtension,
	}
	assembler := forecast.NewAssembler(forecast.Source{
		Opener:     dataset.NewOpener(store, logger, metrics),
		Downloader: download.New(store, cfg.DownloadWorkers, logger, metrics),
		Layout:     layout,
		Logger:     logger,
		Metrics:    metrics,
	})

	var (
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		p      *pipeline.Pipeline
		writer *kafkaadapter.Writer
	)
	if len(cfg.PublishReaches) > 0 {
		variant, err := domain.ParseVariant(cfg.PublishVariant)
		if err != nil {
			logger.Error("invalid publish variant", "error", err)
			os.Exit(1)
		}
		writer = kafkaadapter.NewWriter(cfg, logger)
		p = pipeline.New(assembler, writer, pipeline.Config{
			Reaches:     cfg.PublishReaches,
			Variant:     variant,
			AssimOffset: cfg.AssimOffset,
			Interval:    cfg.PublishInterval,
			Lag:         cfg.AvailabilityLag,
			BatchSize:   cfg.BatchSize,
		}, nil, logger, metrics)
		ready = p
	} else {
		logger.Info("publishing disabled, serving on-demand forecasts only")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, httpadapter.API{
		Assembler:   assembler,
		Layout:      layout,
		Lag:         cfg.AvailabilityLag,
		AssimOffset: cfg.AssimOffset,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start publishing pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := storeCloser.Close(); err != nil {
		logger.Error("storage close error", "error", err)
	}

	logger.Info("shutdown complete")
}
