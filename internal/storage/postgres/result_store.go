package postgres

import (
	"context"
	"fmt"

	"github.com/macrofeed/series-crawler/internal/scheduler"
)

// ResultStore implements scheduler.ResultStore on Postgres, keeping the most
// recent result per series.
type ResultStore struct {
	pool Pool
}

// NewResultStore creates a ResultStore over a fresh connection pool.
func NewResultStore(ctx context.Context, dsn string, maxConns int32) (*ResultStore, error) {
	pool, err := newPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	return &ResultStore{pool: pool}, nil
}

// NewResultStoreWithPool wraps an existing pool.
func NewResultStoreWithPool(pool Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Close closes the underlying connection pool.
func (s *ResultStore) Close() {
	s.pool.Close()
}

// SaveResult upserts the series' latest crawl result.
func (s *ResultStore) SaveResult(ctx context.Context, result scheduler.CrawlResult) error {
	query := `
		INSERT INTO crawl_results (
			series_id, status, records_fetched, start_time, end_time,
			error_message, retry_count, next_retry
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (series_id) DO UPDATE SET
			status = EXCLUDED.status,
			records_fetched = EXCLUDED.records_fetched,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			error_message = EXCLUDED.error_message,
			retry_count = EXCLUDED.retry_count,
			next_retry = EXCLUDED.next_retry;
	`
	_, err := s.pool.Exec(ctx, query,
		result.SeriesID, string(result.Status), result.RecordsFetched,
		result.StartTime, result.EndTime,
		nullableString(result.ErrorMessage), result.RetryCount, result.NextRetry,
	)
	if err != nil {
		return fmt.Errorf("save crawl result: %w", err)
	}
	return nil
}

// ListFailed returns every series whose latest result is a terminal failure.
func (s *ResultStore) ListFailed(ctx context.Context) ([]scheduler.CrawlResult, error) {
	query := `
		SELECT series_id, status, records_fetched, start_time, end_time,
			error_message, retry_count, next_retry
		FROM crawl_results
		WHERE status = $1 AND next_retry IS NULL
		ORDER BY series_id;
	`
	rows, err := s.pool.Query(ctx, query, string(scheduler.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("list failed crawl results: %w", err)
	}
	defer rows.Close()

	var results []scheduler.CrawlResult
	for rows.Next() {
		var r scheduler.CrawlResult
		var status string
		var errMsg *string
		if err := rows.Scan(
			&r.SeriesID, &status, &r.RecordsFetched, &r.StartTime, &r.EndTime,
			&errMsg, &r.RetryCount, &r.NextRetry,
		); err != nil {
			return nil, fmt.Errorf("scan crawl result row: %w", err)
		}
		r.Status = scheduler.Status(status)
		if errMsg != nil {
			r.ErrorMessage = *errMsg
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl results: %w", err)
	}
	return results, nil
}
