package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macrofeed/series-crawler/internal/clock"
)

// ErrAttemptNotFound is returned by stores when an attempt id is unknown.
var ErrAttemptNotFound = errors.New("attempt not found")

// Store is the durable log behind the tracker. Implementations must make
// RecordAttempt idempotent by attempt id.
type Store interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
	CompleteAttempt(ctx context.Context, attemptID string, completedAt time.Time, c Completion) error
	ListAttempts(ctx context.Context, seriesID string, since time.Time) ([]Attempt, error)
}

// IDGenerator produces attempt ids.
type IDGenerator interface {
	NewID() (string, error)
}

// DefaultWindowDays bounds the statistics window when the caller passes zero.
const DefaultWindowDays = 30

// Tracker records attempts and computes rolling statistics over a trailing
// window.
type Tracker struct {
	store Store
	ids   IDGenerator
	clk   clock.Clock
}

// New creates a Tracker.
func New(store Store, ids IDGenerator, clk clock.Clock) *Tracker {
	return &Tracker{store: store, ids: ids, clk: clk}
}

// Begin opens a new attempt for the series and persists it.
func (t *Tracker) Begin(ctx context.Context, seriesID string) (Attempt, error) {
	id, err := t.ids.NewID()
	if err != nil {
		return Attempt{}, fmt.Errorf("generate attempt id: %w", err)
	}
	attempt := Attempt{
		ID:          id,
		SeriesID:    seriesID,
		AttemptedAt: t.clk.Now(),
	}
	if err := t.store.RecordAttempt(ctx, attempt); err != nil {
		return Attempt{}, fmt.Errorf("record attempt: %w", err)
	}
	return attempt, nil
}

// Complete finalizes an attempt with its outcome.
func (t *Tracker) Complete(ctx context.Context, attemptID string, c Completion) error {
	if err := t.store.CompleteAttempt(ctx, attemptID, t.clk.Now(), c); err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

// Statistics aggregates the series' attempts inside the trailing window. A
// series with no attempts gets the all-default statistics object.
func (t *Tracker) Statistics(ctx context.Context, seriesID string, windowDays int) (Statistics, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := t.clk.Now().AddDate(0, 0, -windowDays)
	attempts, err := t.store.ListAttempts(ctx, seriesID, since)
	if err != nil {
		return Statistics{}, fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) == 0 {
		return DefaultStatistics(seriesID), nil
	}

	stats := Statistics{
		SeriesID:      seriesID,
		TotalAttempts: len(attempts),
	}
	var freshnessSum, freshnessN int
	var responseSum, responseN int
	for _, a := range attempts {
		if a.Success {
			stats.SuccessfulAttempts++
		}
		if a.DataFound {
			stats.DataFoundAttempts++
		}
		if a.FreshnessHours != nil {
			freshnessSum += *a.FreshnessHours
			freshnessN++
		}
		if a.ResponseTimeMs != nil {
			responseSum += *a.ResponseTimeMs
			responseN++
		}
	}
	stats.SuccessRate = float64(stats.SuccessfulAttempts) / float64(stats.TotalAttempts)
	stats.DataFoundRate = float64(stats.DataFoundAttempts) / float64(stats.TotalAttempts)
	if freshnessN > 0 {
		avg := float64(freshnessSum) / float64(freshnessN)
		stats.AvgFreshnessHours = &avg
	}
	if responseN > 0 {
		avg := float64(responseSum) / float64(responseN)
		stats.AvgResponseTimeMs = &avg
	}
	stats.RecommendedFrequencyHours = RecommendFrequencyHours(
		stats.SuccessRate, stats.AvgFreshnessHours, stats.DataFoundRate,
	)
	return stats, nil
}
