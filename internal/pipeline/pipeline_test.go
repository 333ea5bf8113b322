package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/couchcryptid/surf-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/surf-forecast-etl/internal/store/sqlite"
)

const (
	spotA = "5842041f4e65fad6a7708970"
	spotB = "5842041f4e65fad6a770883d"
)

// --- mocks ---

type mockProvider struct {
	forecasts map[string]domain.RawForecast
	errs      map[string]error
	calls     []string
}

func (m *mockProvider) FetchForecast(_ context.Context, spotID string, _, _ int) (domain.RawForecast, error) {
	m.calls = append(m.calls, spotID)
	if err := m.errs[spotID]; err != nil {
		return domain.RawForecast{}, err
	}
	return m.forecasts[spotID], nil
}

type mockScraper struct {
	req     domain.ScrapeRequest
	results map[string][]string
	err     error
}

func (m *mockScraper) ScrapeClips(_ context.Context, req domain.ScrapeRequest) (map[string][]string, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockEncoder struct {
	dir  string
	err  error
	seen []domain.FootageAsset
}

func (m *mockEncoder) Retrieve(_ context.Context, asset domain.FootageAsset) (string, error) {
	m.seen = append(m.seen, asset)
	if m.err != nil {
		return "", m.err
	}
	return filepath.Join(m.dir, fmt.Sprintf("%s_%d.mp4", asset.SpotID, asset.CamNumber)), nil
}

type mockPublisher struct {
	batches []domain.ForecastBatch
	err     error
}

func (m *mockPublisher) PublishBatch(_ context.Context, batch domain.ForecastBatch) error {
	m.batches = append(m.batches, batch)
	return m.err
}

// --- fixtures ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "surf.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// makeRawForecast builds a minimal aligned fetch: n hourly samples starting
// 2023-08-27 06:00 UTC with one swell component each, plus one sunlight day.
func makeRawForecast(spotID string, n int) domain.RawForecast {
	base := time.Date(2023, 8, 27, 6, 0, 0, 0, time.UTC).Unix()
	day := time.Date(2023, 8, 27, 0, 0, 0, 0, time.UTC).Unix()

	raw := domain.RawForecast{
		SpotID:    spotID,
		UTCOffset: 0,
		Sunlight: []domain.SunlightTimes{{
			Midnight: day,
			Dawn:     day + 6*3600,
			Sunrise:  day + 6*3600 + 1800,
			Sunset:   day + 19*3600,
			Dusk:     day + 20*3600,
		}},
	}
	for i := 0; i < n; i++ {
		ts := base + int64(i)*3600
		raw.Surf = append(raw.Surf, domain.SurfSample{Timestamp: ts, Min: 1, Max: 2, Probability: 90})
		raw.Swell = append(raw.Swell, domain.SwellSample{Timestamp: ts, Components: []domain.SwellComponentSample{{Height: 1.1, Period: 12}}})
		raw.Wind = append(raw.Wind, domain.WindSample{Timestamp: ts, Speed: 5})
		raw.Tide = append(raw.Tide, domain.TideSample{Timestamp: ts, Type: "NORMAL", Height: 0.4})
		raw.Weather = append(raw.Weather, domain.WeatherSample{Timestamp: ts, Temperature: 18, Condition: "CLEAR"})
	}
	return raw
}

func defaultOptions() pipeline.Options {
	return pipeline.Options{
		ForecastDays:  5,
		IntervalHours: 1,
		LookbackDays:  1,
		Headless:      true,
		Policy:        domain.DefaultClassifyPolicy(),
	}
}

func newOrchestrator(
	store *sqlite.Store,
	provider *mockProvider,
	scraper *mockScraper,
	encoder *mockEncoder,
	publisher pipeline.ForecastPublisher,
	metrics *observability.Metrics,
) *pipeline.Orchestrator {
	return pipeline.New(provider, scraper, encoder, store, store, publisher, defaultOptions(), testLogger(), metrics)
}

// --- forecast refresh ---

func TestRefreshForecasts_PersistsEverySpot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSpot(ctx, spotA))
	require.NoError(t, store.EnsureSpot(ctx, spotB))

	provider := &mockProvider{forecasts: map[string]domain.RawForecast{
		spotA: makeRawForecast(spotA, 3),
		spotB: makeRawForecast(spotB, 2),
	}}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, provider, &mockScraper{}, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.RefreshForecasts(ctx))

	assert.ElementsMatch(t, []string{spotA, spotB}, provider.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SpotsRefreshed))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.RecordsUpserted))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SpotErrors))

	// Sunlight windows landed for both spots.
	for _, spotID := range []string{spotA, spotB} {
		window, err := store.SunlightWindow(ctx, spotID, "2023-08-27")
		require.NoError(t, err)
		require.NotNil(t, window)
	}
}

func TestRefreshForecasts_IsolatesFailingSpot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSpot(ctx, spotA))
	require.NoError(t, store.EnsureSpot(ctx, spotB))

	provider := &mockProvider{
		forecasts: map[string]domain.RawForecast{spotB: makeRawForecast(spotB, 2)},
		errs:      map[string]error{spotA: errors.New("surfline 503")},
	}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, provider, &mockScraper{}, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.RefreshForecasts(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpotsRefreshed))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpotErrors))

	window, err := store.SunlightWindow(ctx, spotB, "2023-08-27")
	require.NoError(t, err)
	assert.NotNil(t, window)
}

func TestRefreshForecasts_CountsAlignmentErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSpot(ctx, spotA))

	raw := makeRawForecast(spotA, 3)
	raw.Wind = raw.Wind[:2] // misaligned

	provider := &mockProvider{forecasts: map[string]domain.RawForecast{spotA: raw}}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, provider, &mockScraper{}, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.RefreshForecasts(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpotErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AlignmentErrors))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.RecordsUpserted))
}

func TestRefreshForecasts_PublishesAfterPersist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSpot(ctx, spotA))

	provider := &mockProvider{forecasts: map[string]domain.RawForecast{spotA: makeRawForecast(spotA, 3)}}
	publisher := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, provider, &mockScraper{}, &mockEncoder{}, publisher, metrics)

	require.NoError(t, o.RefreshForecasts(ctx))

	require.Len(t, publisher.batches, 1)
	assert.Equal(t, spotA, publisher.batches[0].SpotID)
	assert.Len(t, publisher.batches[0].Records, 3)
}

func TestRefreshForecasts_PublishFailureDoesNotFailSpot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSpot(ctx, spotA))

	provider := &mockProvider{forecasts: map[string]domain.RawForecast{spotA: makeRawForecast(spotA, 3)}}
	publisher := &mockPublisher{err: errors.New("broker down")}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, provider, &mockScraper{}, &mockEncoder{}, publisher, metrics)

	require.NoError(t, o.RefreshForecasts(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpotsRefreshed))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SpotErrors))
}

// --- footage scrape ---

// seedCameraAndWindow registers one camera and persists the 2023-08-27
// sunlight window (sunrise 06:30, sunset 19:00 local).
func seedCameraAndWindow(t *testing.T, store *sqlite.Store, spotID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertSurfCam(ctx, domain.SurfCam{
		SpotID:     spotID,
		CamNumber:  1,
		Name:       "Pipeline Overview",
		RewindLink: "pipeline-oahu/5f7ca72ba43acae7a74a4878",
	}))

	batch, err := domain.NormalizeForecast(makeRawForecast(spotID, 1))
	require.NoError(t, err)
	require.NoError(t, store.UpsertForecastBatch(ctx, batch))
}

func TestScrapeFootage_RecordsAndClassifies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCameraAndWindow(t, store, spotA)

	scraper := &mockScraper{results: map[string][]string{
		spotA + "/1": {
			// Daylight, minute 5: download-worthy.
			"https://camrewinds.example.com/pipeline.20230827T070502661.mp4",
			// Daylight, minute 30: not early enough in the hour.
			"https://camrewinds.example.com/pipeline.20230827T073000000.mp4",
			// After sunset: dark.
			"https://camrewinds.example.com/pipeline.20230827T220000000.mp4",
			// No parsable timestamp: skipped entirely.
			"https://camrewinds.example.com/pipeline.mp4",
		},
	}}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, scraper, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.ScrapeFootage(ctx))

	// The scrape request carried the registered camera and run tunables.
	assert.Equal(t, map[string]string{
		spotA + "/1": "pipeline-oahu/5f7ca72ba43acae7a74a4878",
	}, scraper.req.Cameras)
	assert.Equal(t, 1, scraper.req.LookbackDays)
	assert.True(t, scraper.req.Headless)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ClipsDiscovered))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ClipsClassified.WithLabelValues("Pending")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ClipsClassified.WithLabelValues("Null")))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, spotA, pending[0].SpotID)
	assert.Equal(t, 1, pending[0].CamNumber)
	assert.Equal(t, time.Date(2023, 8, 27, 7, 5, 2, 661_000_000, time.UTC), pending[0].CaptureTime)
}

func TestScrapeFootage_UnclassifiedWithoutWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Camera registered but no forecast has been fetched for the clip's date.
	require.NoError(t, store.UpsertSurfCam(ctx, domain.SurfCam{
		SpotID: spotA, CamNumber: 1, RewindLink: "pipeline/abc",
	}))

	scraper := &mockScraper{results: map[string][]string{
		spotA + "/1": {"https://camrewinds.example.com/pipeline.20230901T070500000.mp4"},
	}}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, scraper, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.ScrapeFootage(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ClipsClassified.WithLabelValues("Null")))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScrapeFootage_RescrapeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCameraAndWindow(t, store, spotA)

	scraper := &mockScraper{results: map[string][]string{
		spotA + "/1": {"https://camrewinds.example.com/pipeline.20230827T070502661.mp4"},
	}}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, scraper, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.ScrapeFootage(ctx))
	require.NoError(t, o.ScrapeFootage(ctx))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestScrapeFootage_NoCamerasSkipsScrape(t *testing.T) {
	store := newTestStore(t)
	scraper := &mockScraper{err: errors.New("should not be called")}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, scraper, &mockEncoder{}, nil, metrics)

	require.NoError(t, o.ScrapeFootage(context.Background()))
	assert.Empty(t, scraper.req.Cameras)
}

func TestScrapeFootage_ScraperFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCameraAndWindow(t, store, spotA)

	scraper := &mockScraper{err: errors.New("sidecar unreachable")}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, scraper, &mockEncoder{}, nil, metrics)

	err := o.ScrapeFootage(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape cameras")
}

// --- download ---

func seedPendingClip(t *testing.T, store *sqlite.Store, spotID string) domain.FootageKey {
	t.Helper()
	ctx := context.Background()

	key := domain.FootageKey{
		SpotID:      spotID,
		CamNumber:   1,
		CaptureTime: time.Date(2023, 8, 27, 7, 5, 2, 661_000_000, time.UTC),
	}
	require.NoError(t, store.RecordDiscovered(ctx, domain.FootageAsset{
		FootageKey: key,
		URL:        "https://camrewinds.example.com/pipeline.20230827T070502661.mp4",
		Status:     domain.StatusDiscovered,
	}))
	require.NoError(t, store.ApplyClassification(ctx, key, domain.StatusPending))
	return key
}

func TestDownloadPending_MarksDownloaded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPendingClip(t, store, spotA)

	encoder := &mockEncoder{dir: t.TempDir()}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, &mockScraper{}, encoder, nil, metrics)

	require.NoError(t, o.DownloadPending(ctx))

	require.Len(t, encoder.seen, 1)
	assert.Equal(t, spotA, encoder.seen[0].SpotID)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ClipsDownloaded))
}

func TestDownloadPending_FailureLeavesClipPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPendingClip(t, store, spotA)

	encoder := &mockEncoder{err: errors.New("ffmpeg exploded")}
	metrics := observability.NewMetricsForTesting()
	o := newOrchestrator(store, &mockProvider{}, &mockScraper{}, encoder, nil, metrics)

	require.NoError(t, o.DownloadPending(ctx))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DownloadErrors))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ClipsDownloaded))
}
