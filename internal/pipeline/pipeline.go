// Package pipeline orchestrates the three service runs: forecast refresh,
// footage scrape-and-classify, and pending-clip download. Each run isolates
// failures per entity (spot, camera, clip) so one bad actor never aborts the
// rest of the cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/couchcryptid/surf-forecast-etl/internal/store/sqlite"
)

// ForecastStore is the persistence surface the forecast refresh needs.
type ForecastStore interface {
	SpotIDs(ctx context.Context) ([]string, error)
	UpsertForecastBatch(ctx context.Context, batch domain.ForecastBatch) error
}

// FootageStore is the persistence surface the footage runs need.
type FootageStore interface {
	SurfCams(ctx context.Context) ([]domain.SurfCam, error)
	RecordDiscovered(ctx context.Context, asset domain.FootageAsset) error
	SunlightWindow(ctx context.Context, spotID, date string) (*domain.SunlightWindow, error)
	ApplyClassification(ctx context.Context, key domain.FootageKey, status domain.FootageStatus) error
	ListPending(ctx context.Context) ([]domain.FootageAsset, error)
	MarkDownloaded(ctx context.Context, key domain.FootageKey, storagePath string) error
}

// ForecastPublisher emits refreshed forecast records downstream. Optional.
type ForecastPublisher interface {
	PublishBatch(ctx context.Context, batch domain.ForecastBatch) error
}

// Options carries the per-run tunables the orchestrator forwards to its
// collaborators.
type Options struct {
	ForecastDays  int
	IntervalHours int
	LookbackDays  int
	Headless      bool
	Policy        domain.ClassifyPolicy
}

// Orchestrator coordinates the collaborators for all three runs.
type Orchestrator struct {
	provider  domain.ForecastProvider
	scraper   domain.ClipScraper
	encoder   domain.ClipEncoder
	forecasts ForecastStore
	footage   FootageStore
	publisher ForecastPublisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an Orchestrator. publisher may be nil to disable downstream
// publishing.
func New(
	provider domain.ForecastProvider,
	scraper domain.ClipScraper,
	encoder domain.ClipEncoder,
	forecasts ForecastStore,
	footage FootageStore,
	publisher ForecastPublisher,
	opts Options,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		scraper:   scraper,
		encoder:   encoder,
		forecasts: forecasts,
		footage:   footage,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// RefreshForecasts fetches, normalizes, and persists the forecast for every
// known spot. A failing spot is logged and skipped; the error return is
// reserved for being unable to list spots at all.
func (o *Orchestrator) RefreshForecasts(ctx context.Context) error {
	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)

	spotIDs, err := o.forecasts.SpotIDs(ctx)
	if err != nil {
		return fmt.Errorf("list spots: %w", err)
	}
	o.logger.Info("forecast refresh started", "spots", len(spotIDs))

	var failed int
	for _, spotID := range spotIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.refreshSpot(ctx, spotID); err != nil {
			failed++
			o.metrics.SpotErrors.Inc()
			var alignErr *domain.AlignmentError
			if errors.As(err, &alignErr) {
				o.metrics.AlignmentErrors.Inc()
			}
			o.logger.Error("spot refresh failed", "spot_id", spotID, "error", err)
			continue
		}
		o.metrics.SpotsRefreshed.Inc()
	}

	o.logger.Info("forecast refresh finished", "spots", len(spotIDs), "failed", failed)
	return nil
}

func (o *Orchestrator) refreshSpot(ctx context.Context, spotID string) error {
	start := time.Now()
	raw, err := o.provider.FetchForecast(ctx, spotID, o.opts.ForecastDays, o.opts.IntervalHours)
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}
	o.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	batch, err := domain.NormalizeForecast(raw)
	if err != nil {
		return fmt.Errorf("normalize forecast: %w", err)
	}

	if err := o.forecasts.UpsertForecastBatch(ctx, batch); err != nil {
		return fmt.Errorf("persist forecast: %w", err)
	}
	o.metrics.RecordsUpserted.Add(float64(len(batch.Records)))

	if o.publisher != nil {
		if err := o.publisher.PublishBatch(ctx, batch); err != nil {
			// Persisted state is the source of truth; publishing is
			// best-effort and must not fail the spot.
			o.logger.Warn("publish forecast batch failed", "spot_id", spotID, "error", err)
		}
	}

	o.logger.Debug("spot refreshed", "spot_id", spotID, "records", len(batch.Records))
	return nil
}

// ScrapeFootage runs one scrape over all registered cameras, records every
// discovered clip, and classifies it against the spot's sunlight window.
// A failing camera or clip is logged and skipped.
func (o *Orchestrator) ScrapeFootage(ctx context.Context) error {
	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)

	cams, err := o.footage.SurfCams(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	if len(cams) == 0 {
		o.logger.Info("no cameras registered, skipping scrape")
		return nil
	}

	cameras := make(map[string]string, len(cams))
	for _, cam := range cams {
		cameras[cameraKey(cam.SpotID, cam.CamNumber)] = cam.RewindLink
	}

	results, err := o.scraper.ScrapeClips(ctx, domain.ScrapeRequest{
		Cameras:      cameras,
		LookbackDays: o.opts.LookbackDays,
		Headless:     o.opts.Headless,
	})
	if err != nil {
		return fmt.Errorf("scrape cameras: %w", err)
	}

	for key, urls := range results {
		spotID, camNumber, err := parseCameraKey(key)
		if err != nil {
			o.logger.Warn("skipping unrecognized camera key", "key", key, "error", err)
			continue
		}
		o.ingestCameraClips(ctx, spotID, camNumber, urls)
	}
	return nil
}

// ingestCameraClips records and classifies one camera's discovered URLs.
func (o *Orchestrator) ingestCameraClips(ctx context.Context, spotID string, camNumber int, urls []string) {
	for _, url := range urls {
		if ctx.Err() != nil {
			return
		}
		capture, err := domain.ParseCaptureTime(url)
		if err != nil {
			o.logger.Warn("skipping clip with unparseable timestamp",
				"spot_id", spotID, "cam_number", camNumber, "url", url, "error", err)
			continue
		}

		key := domain.FootageKey{SpotID: spotID, CamNumber: camNumber, CaptureTime: capture}
		if err := o.footage.RecordDiscovered(ctx, domain.FootageAsset{
			FootageKey: key,
			URL:        url,
			Status:     domain.StatusDiscovered,
		}); err != nil {
			o.logger.Error("record clip failed",
				"spot_id", spotID, "cam_number", camNumber, "url", url, "error", err)
			continue
		}
		o.metrics.ClipsDiscovered.Inc()

		o.classifyClip(ctx, key)
	}
}

// classifyClip resolves the clip's sunlight window and applies the resulting
// status. Assets already past classification are left alone.
func (o *Orchestrator) classifyClip(ctx context.Context, key domain.FootageKey) {
	date := key.CaptureTime.Format("2006-01-02")
	window, err := o.footage.SunlightWindow(ctx, key.SpotID, date)
	if err != nil {
		o.logger.Error("sunlight window lookup failed",
			"spot_id", key.SpotID, "date", date, "error", err)
		return
	}

	status := domain.ClassifyFootage(key.CaptureTime, window, o.opts.Policy)
	if err := o.footage.ApplyClassification(ctx, key, status); err != nil {
		if errors.Is(err, sqlite.ErrInvalidTransition) {
			// Re-scraped clip that already advanced past classification.
			return
		}
		o.logger.Error("apply classification failed",
			"spot_id", key.SpotID, "cam_number", key.CamNumber, "status", status, "error", err)
		return
	}
	o.metrics.ClipsClassified.WithLabelValues(string(status)).Inc()
}

// DownloadPending retrieves every clip in the Pending state. A failing clip
// is logged and left Pending for the next run.
func (o *Orchestrator) DownloadPending(ctx context.Context) error {
	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)

	assets, err := o.footage.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending footage: %w", err)
	}
	o.logger.Info("download run started", "pending", len(assets))

	var failed int
	for _, asset := range assets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		path, err := o.encoder.Retrieve(ctx, asset)
		if err != nil {
			failed++
			o.metrics.DownloadErrors.Inc()
			o.logger.Error("clip download failed",
				"spot_id", asset.SpotID, "cam_number", asset.CamNumber,
				"capture_time", asset.CaptureTime, "error", err)
			continue
		}

		if err := o.footage.MarkDownloaded(ctx, asset.FootageKey, path); err != nil {
			failed++
			o.metrics.DownloadErrors.Inc()
			o.logger.Error("mark downloaded failed",
				"spot_id", asset.SpotID, "cam_number", asset.CamNumber, "error", err)
			continue
		}
		o.metrics.ClipsDownloaded.Inc()
		o.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	}

	o.logger.Info("download run finished", "pending", len(assets), "failed", failed)
	return nil
}

// cameraKey builds the scrape-request key for one camera.
func cameraKey(spotID string, camNumber int) string {
	return spotID + "/" + strconv.Itoa(camNumber)
}

func parseCameraKey(key string) (string, int, error) {
	spotID, num, ok := strings.Cut(key, "/")
	if !ok || spotID == "" {
		return "", 0, fmt.Errorf("malformed camera key %q", key)
	}
	camNumber, err := strconv.Atoi(num)
	if err != nil {
		return "", 0, fmt.Errorf("malformed camera key %q: %w", key, err)
	}
	return spotID, camNumber, nil
}
