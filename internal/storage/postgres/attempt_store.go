// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macrofeed/series-crawler/internal/source"
	"github.com/macrofeed/series-crawler/internal/tracker"
)

// Pool is the subset of pgxpool.Pool the stores use; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// AttemptStore implements tracker.Store on Postgres.
type AttemptStore struct {
	pool Pool
}

// NewAttemptStore creates an AttemptStore over a fresh connection pool.
func NewAttemptStore(ctx context.Context, dsn string, maxConns int32) (*AttemptStore, error) {
	pool, err := newPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	return &AttemptStore{pool: pool}, nil
}

// NewAttemptStoreWithPool wraps an existing pool (shared with ResultStore).
func NewAttemptStoreWithPool(pool Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func newPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

// Close closes the underlying connection pool.
func (s *AttemptStore) Close() {
	s.pool.Close()
}

// RecordAttempt inserts a new attempt row. Conflicting ids are ignored so the
// insert is replay-safe.
func (s *AttemptStore) RecordAttempt(ctx context.Context, a tracker.Attempt) error {
	query := `
		INSERT INTO crawl_attempts (id, series_id, attempted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, a.ID, a.SeriesID, a.AttemptedAt); err != nil {
		return fmt.Errorf("insert crawl attempt: %w", err)
	}
	return nil
}

// CompleteAttempt fills the completion columns for an open attempt. Rows that
// already completed are left untouched.
func (s *AttemptStore) CompleteAttempt(
	ctx context.Context,
	attemptID string,
	completedAt time.Time,
	c tracker.Completion,
) error {
	query := `
		UPDATE crawl_attempts
		SET completed_at = $1, success = $2, data_found = $3, new_data_points = $4,
			latest_data_date = $5, data_freshness_hours = $6, error_type = $7,
			error_message = $8, response_time_ms = $9, data_size_bytes = $10
		WHERE id = $11 AND completed_at IS NULL;
	`
	var errType *string
	if c.ErrorType != "" {
		v := string(c.ErrorType)
		errType = &v
	}
	tag, err := s.pool.Exec(ctx, query,
		completedAt, c.Success, c.DataFound, c.NewDataPoints,
		c.LatestDataDate, c.FreshnessHours, errType,
		nullableString(c.ErrorMessage), c.ResponseTimeMs, c.DataSizeBytes,
		attemptID,
	)
	if err != nil {
		return fmt.Errorf("complete crawl attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crawl_attempts WHERE id = $1);`, attemptID)
		if scanErr := row.Scan(&exists); scanErr != nil {
			return fmt.Errorf("check crawl attempt: %w", scanErr)
		}
		if !exists {
			return tracker.ErrAttemptNotFound
		}
	}
	return nil
}

// ListAttempts returns the series' attempts at or after the cutoff, newest
// first.
func (s *AttemptStore) ListAttempts(ctx context.Context, seriesID string, since time.Time) ([]tracker.Attempt, error) {
	query := `
		SELECT id, series_id, attempted_at, completed_at, success, data_found,
			new_data_points, latest_data_date, data_freshness_hours,
			error_type, error_message, response_time_ms, data_size_bytes
		FROM crawl_attempts
		WHERE series_id = $1 AND attempted_at >= $2
		ORDER BY attempted_at DESC;
	`
	rows, err := s.pool.Query(ctx, query, seriesID, since)
	if err != nil {
		return nil, fmt.Errorf("list crawl attempts: %w", err)
	}
	defer rows.Close()

	var attempts []tracker.Attempt
	for rows.Next() {
		var a tracker.Attempt
		var errType, errMsg *string
		if err := rows.Scan(
			&a.ID, &a.SeriesID, &a.AttemptedAt, &a.CompletedAt, &a.Success,
			&a.DataFound, &a.NewDataPoints, &a.LatestDataDate, &a.FreshnessHours,
			&errType, &errMsg, &a.ResponseTimeMs, &a.DataSizeBytes,
		); err != nil {
			return nil, fmt.Errorf("scan crawl attempt row: %w", err)
		}
		if errType != nil {
			a.ErrorType = source.ErrorKind(*errType)
		}
		if errMsg != nil {
			a.ErrorMessage = *errMsg
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl attempts: %w", err)
	}
	return attempts, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
