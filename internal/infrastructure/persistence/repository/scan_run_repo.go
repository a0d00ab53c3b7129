package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/pkg/database"
)

// ScanRunRepository implements port.ScanRunRepository
type ScanRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScanRunRepository creates a new scan run repository
func NewScanRunRepository(db *sql.DB, logger *zap.Logger) port.ScanRunRepository {
	return &ScanRunRepository{
		db:     db,
		logger: logger,
	}
}

const scanRunColumns = `id, triggered_by, date_from, query, status, processed, skipped, errors, error, started_at, finished_at`

// Create inserts a new run record
func (r *ScanRunRepository) Create(ctx context.Context, run *entity.ScanRun) error {
	query := `
		INSERT INTO scan_runs (` + scanRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		run.ID,
		run.Trigger,
		nullTime(run.DateFrom),
		run.Query,
		run.Status,
		run.Processed,
		run.Skipped,
		run.Errors,
		run.Error,
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create scan run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create scan run: %w", err)
	}
	return nil
}

// Finish records the final status and counts of a run
func (r *ScanRunRepository) Finish(ctx context.Context, run *entity.ScanRun) error {
	query := `
		UPDATE scan_runs
		SET query = ?, status = ?, processed = ?, skipped = ?, errors = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		run.Query,
		run.Status,
		run.Processed,
		run.Skipped,
		run.Errors,
		run.Error,
		nullTime(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to finish scan run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to finish scan run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scan run not found: %s", run.ID)
	}
	return nil
}

// GetByID retrieves a run by id. It returns nil when the run does not exist.
func (r *ScanRunRepository) GetByID(ctx context.Context, id string) (*entity.ScanRun, error) {
	query := `SELECT ` + scanRunColumns + ` FROM scan_runs WHERE id = ?`

	run, err := scanRun(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get scan run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return run, nil
}

// ListRecent returns the most recently started runs, newest first
func (r *ScanRunRepository) ListRecent(ctx context.Context, limit int) ([]*entity.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + scanRunColumns + ` FROM scan_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list scan runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*entity.ScanRun, error) {
	var (
		run        entity.ScanRun
		dateFrom   sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Trigger,
		&dateFrom,
		&run.Query,
		&run.Status,
		&run.Processed,
		&run.Skipped,
		&run.Errors,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.DateFrom = timePtr(dateFrom)
	run.FinishedAt = timePtr(finishedAt)
	return &run, nil
}

func (r *ScanRunRepository) getExecutor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.db)
}

// Verify interface compliance
var _ port.ScanRunRepository = (*ScanRunRepository)(nil)
