package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ffmpegadapter "github.com/couchcryptid/surf-forecast-etl/internal/adapter/ffmpeg"
	httpadapter "github.com/couchcryptid/surf-forecast-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/surf-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/rewind"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/surfline"
	"github.com/couchcryptid/surf-forecast-etl/internal/config"
	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/couchcryptid/surf-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/surf-forecast-etl/internal/scheduler"
	"github.com/couchcryptid/surf-forecast-etl/internal/seed"
	"github.com/couchcryptid/surf-forecast-etl/internal/store/sqlite"
)

const usage = `usage: surfetl <command>

commands:
  refresh-forecasts   fetch and persist forecasts for all registered spots
  scrape-footage      discover, classify, and download rewind clips
  download-footage    download and transcode all pending clips
  import-spots [file] import the spot/camera registry (default spots.yaml)
  serve               run the scheduler with health and metrics endpoints
`

func main() {
	os.Exit(run())
}

// run holds all resources behind defers; main exits with its return code.
func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer store.Close()

	o, cleanup := buildOrchestrator(cfg, store, logger)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "refresh-forecasts":
		return runOnce(ctx, logger, o.RefreshForecasts)
	case "scrape-footage":
		return runOnce(ctx, logger, func(ctx context.Context) error {
			if err := o.ScrapeFootage(ctx); err != nil {
				return err
			}
			return o.DownloadPending(ctx)
		})
	case "download-footage":
		return runOnce(ctx, logger, o.DownloadPending)
	case "import-spots":
		path := "spots.yaml"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		return runOnce(ctx, logger, func(ctx context.Context) error {
			return seed.Import(ctx, path, store, logger)
		})
	case "serve":
		return serve(ctx, cfg, store, o, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}
}

// buildOrchestrator wires the adapters and store into the pipeline. The
// returned cleanup flushes and closes the Kafka producer when publishing is
// enabled.
func buildOrchestrator(cfg *config.Config, store *sqlite.Store, logger *slog.Logger) (*pipeline.Orchestrator, func()) {
	metrics := observability.NewMetrics()

	cleanup := func() {}
	var publisher pipeline.ForecastPublisher
	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		publisher = writer
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		logger.Info("forecast publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	return pipeline.New(
		surfline.NewClient(cfg.SurflineBaseURL, cfg.SurflineTimeout, logger),
		rewind.NewClient(cfg.ScraperBaseURL, cfg.ScraperTimeout, logger),
		ffmpegadapter.NewEncoder(cfg.VideoDir, cfg.FFmpegPath, cfg.VideoCRF, cfg.MaxClipDuration, logger),
		store,
		store,
		publisher,
		pipeline.Options{
			ForecastDays:  cfg.ForecastDays,
			IntervalHours: cfg.IntervalHours,
			LookbackDays:  cfg.LookbackDays,
			Headless:      cfg.ScraperHeadless,
			Policy:        domain.ClassifyPolicy{EarlyWindow: cfg.ClipEarlyWindow},
		},
		logger,
		metrics,
	), cleanup
}

// runOnce executes a single pipeline run.
func runOnce(ctx context.Context, logger *slog.Logger, run func(context.Context) error) int {
	if err := run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}
	return 0
}

// serve runs the scheduler alongside the operational HTTP endpoints until a
// termination signal arrives.
func serve(ctx context.Context, cfg *config.Config, store *sqlite.Store, o *pipeline.Orchestrator, logger *slog.Logger) int {
	sched := scheduler.New(o, cfg.FetchInterval, cfg.ScrapeInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Error("scheduler start failed", "error", err)
		return 1
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sched.Stop()

	logger.Info("shutdown complete")
	return 0
}
