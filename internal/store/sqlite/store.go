// Package sqlite persists forecast and footage data in a single SQLite
// database. All mutations are serialized behind one connection and a store
// mutex: the insert-if-missing patterns used for spots and cameras are not
// safe under concurrent writers, so the store enforces single-writer
// execution itself rather than relying on callers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrFootageNotFound is returned when a lifecycle operation references a
	// footage key that was never discovered.
	ErrFootageNotFound = errors.New("footage asset not found")

	// ErrNotPending is returned by MarkDownloaded when the asset is not in
	// the Pending state. The stored row is left untouched.
	ErrNotPending = errors.New("footage asset not pending")

	// ErrInvalidTransition is returned when a classification would move an
	// asset backwards through its lifecycle.
	ErrInvalidTransition = errors.New("invalid footage status transition")
)

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// Store owns the relational schema and exposes idempotent entity upserts and
// integrity-preserving composite inserts over it.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path, applies pragmas,
// and ensures the schema is present. Existing tables are never dropped or
// altered.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps every statement on one SQLite handle, which
	// combined with the store mutex gives the single-writer guarantee.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness verifies the database is reachable and writable enough to
// serve the pipeline. Used by the HTTP readiness endpoint.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// ensureSchema creates any missing tables. Create-if-absent only: re-running
// against a populated database leaves existing data intact.
func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS surf_spots (
			spot_id TEXT PRIMARY KEY,
			spot_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS forecasts (
			spot_id TEXT NOT NULL,
			forecast_timestamp TIMESTAMP NOT NULL,
			utc_offset REAL,
			surf_min REAL,
			surf_max REAL,
			surf_optimal_score INTEGER,
			surf_human_relation TEXT,
			surf_raw_min REAL,
			surf_raw_max REAL,
			wind_speed REAL,
			wind_direction REAL,
			wind_direction_type TEXT,
			wind_gust REAL,
			wind_optimal_score INTEGER,
			forecast_probability REAL,
			tide_type TEXT,
			tide_height REAL,
			weather_temperature REAL,
			weather_condition TEXT,
			weather_pressure REAL,
			is_light INTEGER,
			PRIMARY KEY (spot_id, forecast_timestamp),
			FOREIGN KEY (spot_id) REFERENCES surf_spots(spot_id)
		)`,
		`CREATE TABLE IF NOT EXISTS forecast_swells (
			spot_id TEXT NOT NULL,
			forecast_timestamp TIMESTAMP NOT NULL,
			swell INTEGER NOT NULL,
			height REAL,
			period REAL,
			impact REAL,
			power REAL,
			direction REAL,
			direction_min REAL,
			optimal_score INTEGER,
			PRIMARY KEY (spot_id, forecast_timestamp, swell),
			FOREIGN KEY (spot_id, forecast_timestamp) REFERENCES forecasts(spot_id, forecast_timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS sunlight_times (
			spot_id TEXT NOT NULL,
			sunlight_date DATE NOT NULL,
			midnight TIMESTAMP,
			dawn TIMESTAMP,
			sunrise TIMESTAMP,
			sunset TIMESTAMP,
			dusk TIMESTAMP,
			PRIMARY KEY (spot_id, sunlight_date),
			FOREIGN KEY (spot_id) REFERENCES surf_spots(spot_id)
		)`,
		`CREATE TABLE IF NOT EXISTS surf_cams (
			spot_id TEXT NOT NULL,
			cam_number INTEGER NOT NULL DEFAULT 1,
			cam_name TEXT,
			rewind_link TEXT,
			PRIMARY KEY (spot_id, cam_number),
			FOREIGN KEY (spot_id) REFERENCES surf_spots(spot_id)
		)`,
		`CREATE TABLE IF NOT EXISTS cam_footage (
			spot_id TEXT NOT NULL,
			cam_number INTEGER NOT NULL DEFAULT 1,
			footage_timestamp TIMESTAMP NOT NULL,
			footage_link TEXT NOT NULL,
			forecast_timestamp TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'Discovered',
			file_path TEXT,
			discovered_at TIMESTAMP,
			PRIMARY KEY (spot_id, cam_number, footage_timestamp),
			FOREIGN KEY (spot_id, cam_number) REFERENCES surf_cams(spot_id, cam_number)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	// Stored values carry sub-second precision only when present.
	for _, layout := range []string{timeLayout, timeLayout + ".999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse stored timestamp %q", s)
}

// formatPreciseTime keeps sub-second precision for footage capture times,
// which carry milliseconds from the clip URL and are part of the primary key.
func formatPreciseTime(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format(timeLayout)
	}
	return t.Format(timeLayout + ".000000000")
}
