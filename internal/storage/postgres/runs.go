package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

type runRow struct {
	ID                string          `db:"id"`
	StartedAt         time.Time       `db:"started_at"`
	FinishedAt        *time.Time      `db:"finished_at"`
	Status            string          `db:"status"`
	AssetsScanned     int             `db:"assets_scanned"`
	SetupsFound       int             `db:"setups_found"`
	SetupsExpired     int             `db:"setups_expired"`
	SetupsInvalidated int             `db:"setups_invalidated"`
	MarketRegime      string          `db:"market_regime"`
	Errors            json.RawMessage `db:"errors"`
}

func (r *runRow) toDomain() (*domain.ScanRun, error) {
	run := &domain.ScanRun{
		ID:                r.ID,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		Status:            domain.RunStatus(r.Status),
		AssetsScanned:     r.AssetsScanned,
		SetupsFound:       r.SetupsFound,
		SetupsExpired:     r.SetupsExpired,
		SetupsInvalidated: r.SetupsInvalidated,
		MarketRegime:      r.MarketRegime,
	}
	if err := json.Unmarshal(r.Errors, &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode errors for run %s: %w", r.ID, err)
	}
	return run, nil
}

// InsertRun persists a freshly started (or skipped) scan run.
func (s *Store) InsertRun(ctx context.Context, run *domain.ScanRun) error {
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	query := `
		INSERT INTO scan_runs (id, started_at, finished_at, status, assets_scanned,
			setups_found, setups_expired, setups_invalidated, market_regime, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.Status, run.AssetsScanned,
		run.SetupsFound, run.SetupsExpired, run.SetupsInvalidated, run.MarketRegime, errs,
	); err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}
	return nil
}

// UpdateRun writes the final state of a scan run.
func (s *Store) UpdateRun(ctx context.Context, run *domain.ScanRun) error {
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	query := `
		UPDATE scan_runs SET
			finished_at = $2, status = $3, assets_scanned = $4,
			setups_found = $5, setups_expired = $6, setups_invalidated = $7,
			market_regime = $8, errors = $9
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.AssetsScanned,
		run.SetupsFound, run.SetupsExpired, run.SetupsInvalidated,
		run.MarketRegime, errs,
	); err != nil {
		return fmt.Errorf("failed to update scan run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun fetches one scan run by ID; returns nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.ScanRun, error) {
	var row runRow
	query := `
		SELECT id, started_at, finished_at, status, assets_scanned,
			setups_found, setups_expired, setups_invalidated, market_regime, errors
		FROM scan_runs WHERE id = $1`

	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scan run %s: %w", id, err)
	}
	return row.toDomain()
}

// ListRuns returns the most recent scan runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	query := `
		SELECT id, started_at, finished_at, status, assets_scanned,
			setups_found, setups_expired, setups_invalidated, market_regime, errors
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}

	runs := make([]*domain.ScanRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// MarkStaleRunsFailed closes out runs left in the running state by a crashed
// or restarted process.
func (s *Store) MarkStaleRunsFailed(ctx context.Context, note string) (int64, error) {
	errs, err := json.Marshal([]string{note})
	if err != nil {
		return 0, fmt.Errorf("failed to encode recovery note: %w", err)
	}

	query := `
		UPDATE scan_runs SET status = 'failed', finished_at = now(), errors = $1
		WHERE status = 'running'`

	res, err := s.db.ExecContext(ctx, query, errs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Warn().Int64("runs", n).Msg("recovered stale scan runs")
	}
	return n, nil
}
