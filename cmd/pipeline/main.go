// Command pipeline runs the weather archive ETL: fetch archive and forecast
// payloads for every configured location, build the unified hourly table and
// daily summary, and persist them as parquet and CSV artifacts.
//
// One-shot by default; set RUN_INTERVAL (or pass -every) to keep the process
// alive and re-run over a rolling window, with health and metrics endpoints.
//
// Usage:
//
//	go run ./cmd/pipeline -start 2024-10-01 -end 2024-10-07
//	go run ./cmd/pipeline -every 1h -upload
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/weather-archive-etl/internal/adapter/http"
	"github.com/couchcryptid/weather-archive-etl/internal/adapter/openmeteo"
	s3adapter "github.com/couchcryptid/weather-archive-etl/internal/adapter/s3"
	"github.com/couchcryptid/weather-archive-etl/internal/artifact"
	"github.com/couchcryptid/weather-archive-etl/internal/config"
	"github.com/couchcryptid/weather-archive-etl/internal/domain"
	"github.com/couchcryptid/weather-archive-etl/internal/observability"
	"github.com/couchcryptid/weather-archive-etl/internal/pipeline"
	"github.com/couchcryptid/weather-archive-etl/internal/scheduler"
)

func main() {
	start := flag.String("start", "", "start date YYYY-MM-DD (default: DEFAULT_START_DATE)")
	end := flag.String("end", "", "end date YYYY-MM-DD (default: DEFAULT_END_DATE)")
	upload := flag.Bool("upload", false, "archive artifacts to S3 after the run")
	every := flag.Duration("every", 0, "re-run interval; overrides RUN_INTERVAL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	locations, err := config.LoadLocations(cfg.LocationsFile)
	if err != nil {
		logger.Error("failed to load locations", "error", err)
		os.Exit(1)
	}

	if *start == "" {
		*start = cfg.DefaultStartDate
	}
	if *end == "" {
		*end = cfg.DefaultEndDate
	}
	dateRange, err := domain.ParseDateRange(*start, *end)
	if err != nil {
		logger.Error("invalid date range", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer, err := artifact.NewWriter(filepath.Join(cfg.DataDir, "processed"), logger)
	if err != nil {
		logger.Error("failed to create artifact writer", "error", err)
		os.Exit(1)
	}

	var uploader pipeline.Uploader
	if *upload || cfg.UploadEnabled() {
		if !cfg.UploadEnabled() {
			logger.Error("upload requested but S3_BUCKET_NAME is not set")
			os.Exit(1)
		}
		up, err := s3adapter.NewUploader(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion, logger)
		if err != nil {
			logger.Error("failed to create s3 uploader", "error", err)
			os.Exit(1)
		}
		uploader = up
	}

	fetcher := openmeteo.NewClient(cfg.FetchTimeout, logger)
	p := pipeline.New(fetcher, writer, uploader, pipeline.Options{
		Locations:   locations,
		RawDir:      filepath.Join(cfg.DataDir, "raw"),
		Concurrency: cfg.FetchConcurrency,
	}, logger, metrics)

	interval := cfg.RunInterval
	if *every > 0 {
		interval = *every
	}

	if interval <= 0 {
		runOnce(ctx, p, dateRange, logger)
		return
	}
	runScheduled(ctx, cfg, p, dateRange, interval, logger)
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, r domain.DateRange, logger *slog.Logger) {
	result, err := p.Run(ctx, r)
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
	for _, d := range result.Artifacts {
		logger.Info("artifact", "path", d.Path, "rows", d.Rows)
	}
}

func runScheduled(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, r domain.DateRange, interval time.Duration, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First run covers the explicit range; subsequent ticks use the rolling
	// window of the same length.
	go func() {
		if _, err := p.Run(ctx, r); err != nil {
			logger.Error("initial run failed", "error", err)
		}
	}()

	runTimeout := interval
	if runTimeout > 30*time.Minute {
		runTimeout = 30 * time.Minute
	}
	sched := scheduler.New(pipelineRunner{p}, interval, r.Days(), runTimeout, logger)
	if err := sched.Start(); err != nil {
		logger.Error("scheduler failed to start", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// pipelineRunner adapts Pipeline.Run to the scheduler's error-only contract.
type pipelineRunner struct {
	p *pipeline.Pipeline
}

func (r pipelineRunner) Run(ctx context.Context, dr domain.DateRange) error {
	_, err := r.p.Run(ctx, dr)
	return err
}
