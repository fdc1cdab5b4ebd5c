package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macrofeed/series-crawler/internal/source"
	"github.com/macrofeed/series-crawler/internal/storage/memory"
	"github.com/macrofeed/series-crawler/internal/tracker"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return string(rune('a'+g.n-1)) + "-attempt", nil
}

func newTracker(t *testing.T) (*tracker.Tracker, *memory.AttemptStore, fixedClock) {
	t.Helper()
	clk := fixedClock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewAttemptStore()
	return tracker.New(store, &seqIDs{}, clk), store, clk
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func complete(t *testing.T, tr *tracker.Tracker, seriesID string, c tracker.Completion) {
	t.Helper()
	a, err := tr.Begin(context.Background(), seriesID)
	require.NoError(t, err)
	require.NoError(t, tr.Complete(context.Background(), a.ID, c))
}

func TestStatisticsEmptyWindowReturnsDefaults(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t)
	stats, err := tr.Statistics(context.Background(), "UNRATE", 30)
	require.NoError(t, err)
	require.Equal(t, "UNRATE", stats.SeriesID)
	require.Zero(t, stats.TotalAttempts)
	require.Zero(t, stats.SuccessRate)
	require.Equal(t, 24, stats.RecommendedFrequencyHours)
	require.Nil(t, stats.AvgFreshnessHours)
}

func TestStatisticsAggregation(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t)
	ctx := context.Background()

	complete(t, tr, "CPIAUCSL", tracker.Completion{
		Success: true, DataFound: true, NewDataPoints: 3,
		FreshnessHours: intPtr(10), ResponseTimeMs: intPtr(200),
	})
	complete(t, tr, "CPIAUCSL", tracker.Completion{
		Success: true, DataFound: false,
		FreshnessHours: intPtr(14), ResponseTimeMs: intPtr(400),
	})
	complete(t, tr, "CPIAUCSL", tracker.Completion{
		Success: false, ErrorType: source.KindNetwork, ErrorMessage: "conn reset",
	})

	stats, err := tr.Statistics(ctx, "CPIAUCSL", 30)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalAttempts)
	require.Equal(t, 2, stats.SuccessfulAttempts)
	require.Equal(t, 1, stats.DataFoundAttempts)
	require.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	require.InDelta(t, 1.0/3.0, stats.DataFoundRate, 1e-9)
	require.NotNil(t, stats.AvgFreshnessHours)
	require.InDelta(t, 12.0, *stats.AvgFreshnessHours, 1e-9)
	require.NotNil(t, stats.AvgResponseTimeMs)
	require.InDelta(t, 300.0, *stats.AvgResponseTimeMs, 1e-9)
}

func TestStatisticsIgnoresAttemptsOutsideWindow(t *testing.T) {
	t.Parallel()

	clk := fixedClock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewAttemptStore()
	tr := tracker.New(store, &seqIDs{}, clk)
	ctx := context.Background()

	old := tracker.Attempt{
		ID:          "stale",
		SeriesID:    "GDPC1",
		AttemptedAt: clk.now.AddDate(0, 0, -45),
		Success:     true,
	}
	require.NoError(t, store.RecordAttempt(ctx, old))

	stats, err := tr.Statistics(ctx, "GDPC1", 30)
	require.NoError(t, err)
	require.Zero(t, stats.TotalAttempts)
	require.Equal(t, 24, stats.RecommendedFrequencyHours)
}

func TestRecordAttemptIdempotentByID(t *testing.T) {
	t.Parallel()

	tr, store, _ := newTracker(t)
	ctx := context.Background()

	a, err := tr.Begin(ctx, "PAYEMS")
	require.NoError(t, err)
	// A crashed worker may replay the insert; the log must not grow.
	require.NoError(t, store.RecordAttempt(ctx, a))

	attempts, err := store.ListAttempts(ctx, "PAYEMS", time.Time{})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
}

func TestRecommendFrequencyExactExamples(t *testing.T) {
	t.Parallel()

	// Fresh, reliable, productive: 6 * 1 * 1.
	require.Equal(t, 6, tracker.RecommendFrequencyHours(1.0, floatPtr(12), 1.0))
	// Same freshness, poor reliability and yield: 6 * 4 * 4.
	require.Equal(t, 96, tracker.RecommendFrequencyHours(0.6, floatPtr(12), 0.4))
}

func TestRecommendFrequencyBaseTiers(t *testing.T) {
	t.Parallel()

	require.Equal(t, 6, tracker.RecommendFrequencyHours(1.0, floatPtr(23.9), 1.0))
	require.Equal(t, 24, tracker.RecommendFrequencyHours(1.0, floatPtr(24), 1.0))
	require.Equal(t, 24, tracker.RecommendFrequencyHours(1.0, floatPtr(167), 1.0))
	require.Equal(t, 168, tracker.RecommendFrequencyHours(1.0, floatPtr(168), 1.0))
	require.Equal(t, 24, tracker.RecommendFrequencyHours(1.0, nil, 1.0))
}

func TestRecommendFrequencyClamp(t *testing.T) {
	t.Parallel()

	// Worst case: 168 * 4 * 4 = 2688 clamps to 672.
	require.Equal(t, 672, tracker.RecommendFrequencyHours(0.0, floatPtr(10000), 0.0))
	// All paths stay within [1, 672].
	rates := []float64{0.0, 0.3, 0.6, 0.75, 0.95, 1.0}
	fresh := []*float64{nil, floatPtr(1), floatPtr(100), floatPtr(500)}
	for _, sr := range rates {
		for _, df := range rates {
			for _, f := range fresh {
				got := tracker.RecommendFrequencyHours(sr, f, df)
				require.GreaterOrEqual(t, got, 1)
				require.LessOrEqual(t, got, 672)
			}
		}
	}
}
