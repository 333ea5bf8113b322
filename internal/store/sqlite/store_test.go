package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surf.db")
	s, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func count(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(query, args...).Scan(&n))
	return n
}

// makeBatch builds a normalized batch of n hourly records with k swell ranks
// each, starting 2023-08-27 06:00 local, plus one sunlight window.
func makeBatch(spotID string, n, k int) domain.ForecastBatch {
	day := time.Date(2023, 8, 27, 0, 0, 0, 0, time.UTC)

	batch := domain.ForecastBatch{
		SpotID: spotID,
		Windows: []domain.SunlightWindow{{
			SpotID:   spotID,
			Date:     "2023-08-27",
			Midnight: day,
			Dawn:     day.Add(6 * time.Hour),
			Sunrise:  day.Add(6*time.Hour + 30*time.Minute),
			Sunset:   day.Add(19*time.Hour + 45*time.Minute),
			Dusk:     day.Add(20 * time.Hour),
		}},
	}

	for i := 0; i < n; i++ {
		rec := domain.ForecastRecord{
			SpotID:             spotID,
			Timestamp:          day.Add(time.Duration(6+i) * time.Hour),
			UTCOffset:          2,
			SurfMin:            0.5 + float64(i),
			SurfMax:            1.2 + float64(i),
			SurfOptimalScore:   1,
			SurfHumanRelation:  "Waist to chest",
			SurfRawMin:         0.48,
			SurfRawMax:         1.22,
			WindSpeed:          12,
			WindDirection:      200,
			WindDirectionType:  "Offshore",
			WindGust:           18,
			WindOptimalScore:   2,
			Probability:        85,
			TideType:           "NORMAL",
			TideHeight:         0.7,
			WeatherTemperature: 19,
			WeatherCondition:   "CLEAR",
			WeatherPressure:    1016,
			IsLight:            true,
		}
		rec.Swells = domain.SwellSet{
			Height:       make([]float64, k),
			Period:       make([]float64, k),
			Impact:       make([]float64, k),
			Power:        make([]float64, k),
			Direction:    make([]float64, k),
			DirectionMin: make([]float64, k),
			OptimalScore: make([]int, k),
		}
		for j := 0; j < k; j++ {
			rec.Swells.Height[j] = float64(i) + float64(j)/10
			rec.Swells.Period[j] = 12 - float64(j)
			rec.Swells.Direction[j] = 220 + float64(j)
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surf.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.UpsertSpot(context.Background(), domain.Spot{ID: "a", Name: "Spot A"}))
	require.NoError(t, s.Close())

	// Reopening must not destroy existing rows.
	s, err = Open(path, logger)
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.SpotIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestEnsureSpot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureSpot(ctx, "a"))
	require.NoError(t, s.EnsureSpot(ctx, "a"))
	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM surf_spots`))

	t.Run("never clobbers an explicit name", func(t *testing.T) {
		require.NoError(t, s.UpsertSpot(ctx, domain.Spot{ID: "b", Name: "Spot B"}))
		require.NoError(t, s.EnsureSpot(ctx, "b"))

		var name string
		require.NoError(t, s.db.QueryRow(
			`SELECT spot_name FROM surf_spots WHERE spot_id = 'b'`).Scan(&name))
		assert.Equal(t, "Spot B", name)
	})
}

func TestUpsertSpot_OverwritesName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSpot(ctx, domain.Spot{ID: "a", Name: "Old"}))
	require.NoError(t, s.UpsertSpot(ctx, domain.Spot{ID: "a", Name: "New"}))

	var name string
	require.NoError(t, s.db.QueryRow(
		`SELECT spot_name FROM surf_spots WHERE spot_id = 'a'`).Scan(&name))
	assert.Equal(t, "New", name)
	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM surf_spots`))
}

func TestUpsertSurfCam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := domain.SurfCam{SpotID: "a", CamNumber: 1, Name: "North Cam", RewindLink: "spot-a/abc123"}
	require.NoError(t, s.UpsertSurfCam(ctx, cam))

	// Parent spot was created implicitly.
	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM surf_spots WHERE spot_id = 'a'`))

	cam.Name = "North Cam HD"
	require.NoError(t, s.UpsertSurfCam(ctx, cam))

	cams, err := s.SurfCams(ctx)
	require.NoError(t, err)
	require.Len(t, cams, 1)
	assert.Equal(t, "North Cam HD", cams[0].Name)
	assert.Equal(t, "spot-a/abc123", cams[0].RewindLink)
}

func TestUpsertForecastBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := makeBatch("a", 3, 6)
	require.NoError(t, s.UpsertForecastBatch(ctx, batch))

	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM surf_spots`))
	assert.Equal(t, 3, count(t, s, `SELECT COUNT(*) FROM forecasts`))
	assert.Equal(t, 18, count(t, s, `SELECT COUNT(*) FROM forecast_swells`))
	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM sunlight_times`))

	t.Run("re-run with identical input is idempotent", func(t *testing.T) {
		require.NoError(t, s.UpsertForecastBatch(ctx, batch))

		assert.Equal(t, 3, count(t, s, `SELECT COUNT(*) FROM forecasts`))
		assert.Equal(t, 18, count(t, s, `SELECT COUNT(*) FROM forecast_swells`))
		assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM sunlight_times`))

		var surfMin float64
		require.NoError(t, s.db.QueryRow(
			`SELECT surf_min FROM forecasts WHERE spot_id = 'a' ORDER BY forecast_timestamp LIMIT 1`).
			Scan(&surfMin))
		assert.Equal(t, 0.5, surfMin)
	})

	t.Run("re-fetch replaces the full swell set", func(t *testing.T) {
		smaller := makeBatch("a", 3, 4)
		require.NoError(t, s.UpsertForecastBatch(ctx, smaller))

		// Old rank-5 and rank-6 rows must be gone, not orphaned.
		assert.Equal(t, 12, count(t, s, `SELECT COUNT(*) FROM forecast_swells`))
		assert.Equal(t, 0, count(t, s, `SELECT COUNT(*) FROM forecast_swells WHERE swell > 4`))
	})

	t.Run("independent spots accumulate", func(t *testing.T) {
		require.NoError(t, s.UpsertForecastBatch(ctx, makeBatch("b", 2, 6)))

		assert.Equal(t, 2, count(t, s, `SELECT COUNT(*) FROM surf_spots`))
		assert.Equal(t, 5, count(t, s, `SELECT COUNT(*) FROM forecasts`))
	})

	t.Run("swell ranks preserve component order", func(t *testing.T) {
		rows, err := s.db.Query(
			`SELECT swell, direction FROM forecast_swells
			 WHERE spot_id = 'b' ORDER BY forecast_timestamp, swell LIMIT 6`)
		require.NoError(t, err)
		defer rows.Close()

		rank := 0
		for rows.Next() {
			var swell int
			var direction float64
			require.NoError(t, rows.Scan(&swell, &direction))
			rank++
			assert.Equal(t, rank, swell)
			assert.Equal(t, 220+float64(rank-1), direction)
		}
		assert.Equal(t, 6, rank)
	})
}

func TestSunlightWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertForecastBatch(ctx, makeBatch("a", 1, 1)))

	t.Run("found", func(t *testing.T) {
		w, err := s.SunlightWindow(ctx, "a", "2023-08-27")
		require.NoError(t, err)
		require.NotNil(t, w)
		assert.Equal(t, time.Date(2023, 8, 27, 6, 30, 0, 0, time.UTC), w.Sunrise)
		assert.Equal(t, time.Date(2023, 8, 27, 19, 45, 0, 0, time.UTC), w.Sunset)
	})

	t.Run("absent is nil, not an error", func(t *testing.T) {
		w, err := s.SunlightWindow(ctx, "a", "2023-08-28")
		require.NoError(t, err)
		assert.Nil(t, w)
	})
}
