// Package memory provides in-memory store implementations for development and
// testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/macrofeed/series-crawler/internal/tracker"
)

// AttemptStore is an in-memory tracker.Store.
type AttemptStore struct {
	mu       sync.RWMutex
	byID     map[string]*tracker.Attempt
	bySeries map[string][]*tracker.Attempt
}

// NewAttemptStore constructs an AttemptStore.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:     make(map[string]*tracker.Attempt),
		bySeries: make(map[string][]*tracker.Attempt),
	}
}

// RecordAttempt appends a new attempt. Replays of an already-recorded id are
// ignored, which makes crash-replay safe.
func (s *AttemptStore) RecordAttempt(_ context.Context, attempt tracker.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[attempt.ID]; exists {
		return nil
	}
	a := attempt
	s.byID[a.ID] = &a
	s.bySeries[a.SeriesID] = append(s.bySeries[a.SeriesID], &a)
	return nil
}

// CompleteAttempt fills in the completion fields for an open attempt.
func (s *AttemptStore) CompleteAttempt(
	_ context.Context,
	attemptID string,
	completedAt time.Time,
	c tracker.Completion,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[attemptID]
	if !ok {
		return tracker.ErrAttemptNotFound
	}
	if a.CompletedAt != nil {
		// Attempts complete exactly once.
		return nil
	}
	done := completedAt
	a.CompletedAt = &done
	a.Success = c.Success
	a.DataFound = c.DataFound
	a.NewDataPoints = c.NewDataPoints
	a.LatestDataDate = c.LatestDataDate
	a.FreshnessHours = c.FreshnessHours
	a.ErrorType = c.ErrorType
	a.ErrorMessage = c.ErrorMessage
	a.ResponseTimeMs = c.ResponseTimeMs
	a.DataSizeBytes = c.DataSizeBytes
	return nil
}

// ListAttempts returns the series' attempts at or after the cutoff, newest
// first.
func (s *AttemptStore) ListAttempts(_ context.Context, seriesID string, since time.Time) ([]tracker.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []tracker.Attempt
	list := s.bySeries[seriesID]
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].AttemptedAt.Before(since) {
			out = append(out, *list[i])
		}
	}
	return out, nil
}
