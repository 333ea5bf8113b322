package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// EnsureSpot inserts a stub spot row (no name) if the spot is unknown.
// No-op when the spot already exists, so a previously set name is never
// clobbered. Runs as a single INSERT OR IGNORE: atomic, no check-then-insert
// window.
func (s *Store) EnsureSpot(ctx context.Context, spotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO surf_spots (spot_id) VALUES (?)`, spotID)
	if err != nil {
		return fmt.Errorf("ensure spot %s: %w", spotID, err)
	}
	return nil
}

// UpsertSpot inserts or replaces a spot row, always setting the name.
// Use EnsureSpot instead when the caller only knows the ID.
func (s *Store) UpsertSpot(ctx context.Context, spot domain.Spot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO surf_spots (spot_id, spot_name) VALUES (?, ?)`,
		spot.ID, spot.Name)
	if err != nil {
		return fmt.Errorf("upsert spot %s: %w", spot.ID, err)
	}
	return nil
}

// UpsertSurfCam inserts or replaces a camera row, ensuring its parent spot
// exists first.
func (s *Store) UpsertSurfCam(ctx context.Context, cam domain.SurfCam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert surf cam: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO surf_spots (spot_id) VALUES (?)`, cam.SpotID); err != nil {
		return fmt.Errorf("upsert surf cam: ensure spot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO surf_cams (spot_id, cam_number, cam_name, rewind_link)
		 VALUES (?, ?, ?, ?)`,
		cam.SpotID, cam.CamNumber, cam.Name, cam.RewindLink); err != nil {
		return fmt.Errorf("upsert surf cam %s/%d: %w", cam.SpotID, cam.CamNumber, err)
	}
	return tx.Commit()
}

// UpsertForecastBatch stores one spot's normalized fetch as a single
// transaction: the spot stub, every forecast row with its complete swell
// rank set, and the sunlight windows. Either all rows for the spot become
// visible or none do; other spots' already-committed batches are unaffected.
// Re-running with identical input is idempotent.
func (s *Store) UpsertForecastBatch(ctx context.Context, batch domain.ForecastBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("forecast batch %s: begin: %w", batch.SpotID, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO surf_spots (spot_id) VALUES (?)`, batch.SpotID); err != nil {
		return fmt.Errorf("forecast batch %s: ensure spot: %w", batch.SpotID, err)
	}

	for i := range batch.Records {
		if err := upsertForecastRecord(ctx, tx, &batch.Records[i]); err != nil {
			return fmt.Errorf("forecast batch %s: %w", batch.SpotID, err)
		}
	}

	for _, w := range batch.Windows {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO sunlight_times
				(spot_id, sunlight_date, midnight, dawn, sunrise, sunset, dusk)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.SpotID, w.Date,
			formatTime(w.Midnight), formatTime(w.Dawn), formatTime(w.Sunrise),
			formatTime(w.Sunset), formatTime(w.Dusk)); err != nil {
			return fmt.Errorf("forecast batch %s: sunlight %s: %w", batch.SpotID, w.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("forecast batch %s: commit: %w", batch.SpotID, err)
	}
	return nil
}

// upsertForecastRecord replaces one forecast row and its full swell rank set.
// Swells are deleted before the parent row is replaced so the foreign key on
// (spot_id, forecast_timestamp) never dangles mid-transaction.
func upsertForecastRecord(ctx context.Context, tx *sql.Tx, rec *domain.ForecastRecord) error {
	ts := formatTime(rec.Timestamp)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM forecast_swells WHERE spot_id = ? AND forecast_timestamp = ?`,
		rec.SpotID, ts); err != nil {
		return fmt.Errorf("clear swells %s: %w", ts, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO forecasts (
			spot_id, forecast_timestamp, utc_offset,
			surf_min, surf_max, surf_optimal_score, surf_human_relation,
			surf_raw_min, surf_raw_max,
			wind_speed, wind_direction, wind_direction_type, wind_gust, wind_optimal_score,
			forecast_probability,
			tide_type, tide_height,
			weather_temperature, weather_condition, weather_pressure,
			is_light
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SpotID, ts, rec.UTCOffset,
		rec.SurfMin, rec.SurfMax, rec.SurfOptimalScore, rec.SurfHumanRelation,
		rec.SurfRawMin, rec.SurfRawMax,
		rec.WindSpeed, rec.WindDirection, rec.WindDirectionType, rec.WindGust, rec.WindOptimalScore,
		rec.Probability,
		rec.TideType, rec.TideHeight,
		rec.WeatherTemperature, rec.WeatherCondition, rec.WeatherPressure,
		boolToInt(rec.IsLight)); err != nil {
		return fmt.Errorf("forecast row %s: %w", ts, err)
	}

	for rank := 1; rank <= rec.Swells.Len(); rank++ {
		i := rank - 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO forecast_swells
				(spot_id, forecast_timestamp, swell,
				 height, period, impact, power, direction, direction_min, optimal_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SpotID, ts, rank,
			rec.Swells.Height[i], rec.Swells.Period[i], rec.Swells.Impact[i],
			rec.Swells.Power[i], rec.Swells.Direction[i], rec.Swells.DirectionMin[i],
			rec.Swells.OptimalScore[i]); err != nil {
			return fmt.Errorf("swell row %s rank %d: %w", ts, rank, err)
		}
	}

	return nil
}

// SpotIDs lists all known spot identifiers.
func (s *Store) SpotIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT spot_id FROM surf_spots ORDER BY spot_id`)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list spots: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SurfCams lists all cameras across all spots.
func (s *Store) SurfCams(ctx context.Context) ([]domain.SurfCam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spot_id, cam_number, cam_name, rewind_link
		 FROM surf_cams ORDER BY spot_id, cam_number`)
	if err != nil {
		return nil, fmt.Errorf("list surf cams: %w", err)
	}
	defer rows.Close()

	var cams []domain.SurfCam
	for rows.Next() {
		var cam domain.SurfCam
		var name, link sql.NullString
		if err := rows.Scan(&cam.SpotID, &cam.CamNumber, &name, &link); err != nil {
			return nil, fmt.Errorf("list surf cams: %w", err)
		}
		cam.Name = name.String
		cam.RewindLink = link.String
		cams = append(cams, cam)
	}
	return cams, rows.Err()
}

// SunlightWindow fetches the window for (spot, date). Absence is not an
// error: the returned pointer is nil when no window exists.
func (s *Store) SunlightWindow(ctx context.Context, spotID, date string) (*domain.SunlightWindow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT midnight, dawn, sunrise, sunset, dusk
		 FROM sunlight_times WHERE spot_id = ? AND sunlight_date = ?`,
		spotID, date)

	var midnight, dawn, sunrise, sunset, dusk string
	err := row.Scan(&midnight, &dawn, &sunrise, &sunset, &dusk)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sunlight window %s %s: %w", spotID, date, err)
	}

	w := domain.SunlightWindow{SpotID: spotID, Date: date}
	for _, field := range []struct {
		raw  string
		dest *time.Time
	}{
		{midnight, &w.Midnight}, {dawn, &w.Dawn}, {sunrise, &w.Sunrise},
		{sunset, &w.Sunset}, {dusk, &w.Dusk},
	} {
		t, err := parseTime(field.raw)
		if err != nil {
			return nil, fmt.Errorf("sunlight window %s %s: %w", spotID, date, err)
		}
		*field.dest = t
	}
	return &w, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
