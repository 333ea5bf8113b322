package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// RecordDiscovered persists a newly scraped clip with status Discovered,
// creating stub spot and camera parents if missing. Discovering an already
// known key is a no-op: the URL is set once and never overwritten, and the
// existing lifecycle state is preserved.
func (s *Store) RecordDiscovered(ctx context.Context, asset domain.FootageAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record discovered: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO surf_spots (spot_id) VALUES (?)`, asset.SpotID); err != nil {
		return fmt.Errorf("record discovered: ensure spot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO surf_cams (spot_id, cam_number) VALUES (?, ?)`,
		asset.SpotID, asset.CamNumber); err != nil {
		return fmt.Errorf("record discovered: ensure cam: %w", err)
	}

	var forecastTS any
	if asset.ForecastTimestamp != nil {
		forecastTS = formatTime(*asset.ForecastTimestamp)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO cam_footage
			(spot_id, cam_number, footage_timestamp, footage_link,
			 forecast_timestamp, status, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset.SpotID, asset.CamNumber, formatPreciseTime(asset.CaptureTime),
		asset.URL, forecastTS, string(domain.StatusDiscovered),
		formatTime(domain.Now())); err != nil {
		return fmt.Errorf("record discovered %s/%d: %w", asset.SpotID, asset.CamNumber, err)
	}

	return tx.Commit()
}

// ApplyClassification moves an asset from Discovered to Pending or
// Unclassified. Reapplying the current status is a no-op. Any transition not
// defined by the lifecycle fails with ErrInvalidTransition; Downloaded is
// reachable only through MarkDownloaded.
func (s *Store) ApplyClassification(ctx context.Context, key domain.FootageKey, status domain.FootageStatus) error {
	if status != domain.StatusPending && status != domain.StatusUnclassified {
		return fmt.Errorf("%w: classification cannot set %q", ErrInvalidTransition, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.footageStatus(ctx, key)
	if err != nil {
		return err
	}
	if current == status {
		return nil
	}
	if !current.CanTransition(status) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, current, status)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE cam_footage SET status = ?
		 WHERE spot_id = ? AND cam_number = ? AND footage_timestamp = ?`,
		string(status), key.SpotID, key.CamNumber, formatPreciseTime(key.CaptureTime))
	if err != nil {
		return fmt.Errorf("apply classification %s/%d: %w", key.SpotID, key.CamNumber, err)
	}
	return nil
}

// ListPending returns every asset currently queued for retrieval, ordered by
// capture time. Read-only and repeatable: a crashed download run restarts
// from the same set.
func (s *Store) ListPending(ctx context.Context) ([]domain.FootageAsset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spot_id, cam_number, footage_timestamp, footage_link, forecast_timestamp
		 FROM cam_footage WHERE status = ?
		 ORDER BY footage_timestamp, spot_id, cam_number`,
		string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var assets []domain.FootageAsset
	for rows.Next() {
		var (
			asset      domain.FootageAsset
			capture    string
			forecastTS sql.NullString
		)
		if err := rows.Scan(&asset.SpotID, &asset.CamNumber, &capture, &asset.URL, &forecastTS); err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		if asset.CaptureTime, err = parseTime(capture); err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		if forecastTS.Valid {
			t, err := parseTime(forecastTS.String)
			if err != nil {
				return nil, fmt.Errorf("list pending: %w", err)
			}
			asset.ForecastTimestamp = &t
		}
		asset.Status = domain.StatusPending
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// MarkDownloaded records a terminal download outcome: status Downloaded plus
// the local artifact path. The asset must currently be Pending; otherwise the
// call fails without mutating the row.
func (s *Store) MarkDownloaded(ctx context.Context, key domain.FootageKey, storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE cam_footage SET status = ?, file_path = ?
		 WHERE spot_id = ? AND cam_number = ? AND footage_timestamp = ? AND status = ?`,
		string(domain.StatusDownloaded), storagePath,
		key.SpotID, key.CamNumber, formatPreciseTime(key.CaptureTime),
		string(domain.StatusPending))
	if err != nil {
		return fmt.Errorf("mark downloaded %s/%d: %w", key.SpotID, key.CamNumber, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark downloaded %s/%d: %w", key.SpotID, key.CamNumber, err)
	}
	if affected == 0 {
		current, err := s.footageStatus(ctx, key)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: status is %q", ErrNotPending, current)
	}
	return nil
}

// footageStatus reads an asset's current status, failing with
// ErrFootageNotFound for unknown keys.
func (s *Store) footageStatus(ctx context.Context, key domain.FootageKey) (domain.FootageStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM cam_footage
		 WHERE spot_id = ? AND cam_number = ? AND footage_timestamp = ?`,
		key.SpotID, key.CamNumber, formatPreciseTime(key.CaptureTime)).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s/%d %s", ErrFootageNotFound,
			key.SpotID, key.CamNumber, formatPreciseTime(key.CaptureTime))
	}
	if err != nil {
		return "", fmt.Errorf("footage status %s/%d: %w", key.SpotID, key.CamNumber, err)
	}
	return domain.FootageStatus(status), nil
}
