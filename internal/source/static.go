package source

import (
	"context"
	"time"

	"github.com/macrofeed/series-crawler/internal/clock"
)

// StaticAdapter returns canned outcomes without touching the network. It backs
// providers that have no live client yet and keeps local development runs
// offline.
type StaticAdapter struct {
	clk     clock.Clock
	records int
	lag     time.Duration
}

// NewStaticAdapter constructs an adapter that always reports records
// observations with the newest one lag behind now.
func NewStaticAdapter(clk clock.Clock, records int, lag time.Duration) *StaticAdapter {
	return &StaticAdapter{clk: clk, records: records, lag: lag}
}

// Fetch returns the canned outcome.
func (a *StaticAdapter) Fetch(ctx context.Context, _ string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	latest := a.clk.Now().Add(-a.lag)
	return Outcome{
		RecordsFetched: a.records,
		LatestDataDate: &latest,
		DataSizeBytes:  a.records * 64,
		ResponseTime:   5 * time.Millisecond,
	}, nil
}
