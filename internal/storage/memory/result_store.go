package memory

import (
	"context"
	"sync"

	"github.com/macrofeed/series-crawler/internal/scheduler"
)

// ResultStore is an in-memory scheduler.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]scheduler.CrawlResult
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]scheduler.CrawlResult)}
}

// SaveResult upserts the series' current history slot.
func (s *ResultStore) SaveResult(_ context.Context, result scheduler.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.SeriesID] = result
	return nil
}

// ListFailed returns every stored result in a terminal failed state.
func (s *ResultStore) ListFailed(_ context.Context) ([]scheduler.CrawlResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scheduler.CrawlResult
	for _, r := range s.results {
		if r.Terminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Result returns the stored slot for a series, for tests and admin views.
func (s *ResultStore) Result(seriesID string) (scheduler.CrawlResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[seriesID]
	return r, ok
}
