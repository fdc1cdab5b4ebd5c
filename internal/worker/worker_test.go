package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/metrics"
	"github.com/macrofeed/series-crawler/internal/policy/ratelimit"
	pubmemory "github.com/macrofeed/series-crawler/internal/publisher/memory"
	"github.com/macrofeed/series-crawler/internal/scheduler"
	"github.com/macrofeed/series-crawler/internal/source"
	"github.com/macrofeed/series-crawler/internal/storage/memory"
	"github.com/macrofeed/series-crawler/internal/tracker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "id-" + string(rune('a'+g.n-1)), nil
}

type failingAdapter struct {
	err error
}

func (a *failingAdapter) Fetch(context.Context, string) (source.Outcome, error) {
	return source.Outcome{}, a.err
}

type fixedAdapter struct {
	outcome source.Outcome
}

func (a *fixedAdapter) Fetch(context.Context, string) (source.Outcome, error) {
	return a.outcome, nil
}

func testHarness(t *testing.T, adapters source.Registry) (*Pool, *scheduler.Scheduler, *memory.AttemptStore, *pubmemory.Publisher, *fakeClock) {
	t.Helper()
	metrics.Init()

	clk := &fakeClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
	cat, err := catalog.New([]catalog.SeriesDefinition{
		{ID: "GDPC1", Name: "Real GDP", Category: catalog.NationalAccounts, Source: catalog.SourceFRED, Frequency: catalog.Quarterly, Priority: 1, IsActive: true},
		{ID: "CPIAUCSL", Name: "CPI", Category: catalog.Prices, Source: catalog.SourceBLS, Frequency: catalog.Monthly, Priority: 2, IsActive: true},
	})
	require.NoError(t, err)

	limiter := ratelimit.New(ratelimit.Config{DefaultRequestsPerMinute: 6000}, clk)
	sched := scheduler.New(cat, limiter, memory.NewResultStore(), &seqIDs{}, clk, zap.NewNop(), scheduler.Config{})
	sched.InitializeFromCatalog()

	attempts := memory.NewAttemptStore()
	trk := tracker.New(attempts, &seqIDs{}, clk)
	pub := pubmemory.New()

	pool := New(sched, adapters, trk, pub, clk, Config{Workers: 2, FetchTimeout: time.Second}, zap.NewNop())
	return pool, sched, attempts, pub, clk
}

func TestExecuteSuccessRecordsAttemptAndPublishes(t *testing.T) {
	t.Parallel()

	latest := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	adapters := source.Registry{
		catalog.SourceFRED: &fixedAdapter{outcome: source.Outcome{
			RecordsFetched: 8,
			LatestDataDate: &latest,
			DataSizeBytes:  1024,
			ResponseTime:   200 * time.Millisecond,
		}},
	}
	pool, sched, attempts, pub, clk := testHarness(t, adapters)

	clk.Advance(366 * 24 * time.Hour)
	jobs := sched.GetReadyJobs(1)
	require.Len(t, jobs, 1)
	require.Equal(t, "GDPC1", jobs[0].SeriesID)

	pool.execute(context.Background(), jobs[0])

	stats := sched.GetStats()
	assert.Equal(t, 1, stats.CompletedToday)
	assert.Equal(t, 0, stats.FailedToday)

	logged, err := attempts.ListAttempts(context.Background(), "GDPC1", time.Time{})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.True(t, logged[0].Success)
	assert.True(t, logged[0].DataFound)
	assert.Equal(t, 8, logged[0].NewDataPoints)
	require.NotNil(t, logged[0].FreshnessHours)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "crawl-events", events[0].Topic)
	assert.Equal(t, "completed", events[0].Event.Status)
	assert.Equal(t, 8, events[0].Event.RecordsFetched)
}

func TestExecuteFailureClassifiesAndPublishes(t *testing.T) {
	t.Parallel()

	adapters := source.Registry{
		catalog.SourceFRED: &failingAdapter{err: source.NewError(source.KindRateLimit, "throttled")},
	}
	pool, sched, attempts, pub, clk := testHarness(t, adapters)

	clk.Advance(366 * 24 * time.Hour)
	jobs := sched.GetReadyJobs(1)
	require.Len(t, jobs, 1)

	pool.execute(context.Background(), jobs[0])

	stats := sched.GetStats()
	assert.Equal(t, 1, stats.FailedToday)

	logged, err := attempts.ListAttempts(context.Background(), "GDPC1", time.Time{})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.False(t, logged[0].Success)
	assert.Equal(t, source.KindRateLimit, logged[0].ErrorType)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Event.Status)
	assert.Equal(t, "rate_limit", events[0].Event.ErrorKind)
}

func TestExecuteMissingAdapterFailsJob(t *testing.T) {
	t.Parallel()

	pool, sched, _, pub, clk := testHarness(t, source.Registry{})

	clk.Advance(366 * 24 * time.Hour)
	jobs := sched.GetReadyJobs(1)
	require.Len(t, jobs, 1)

	pool.execute(context.Background(), jobs[0])

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Event.Status)
	assert.Equal(t, "unknown", events[0].Event.ErrorKind)
}

func TestRunDrainsOnCancel(t *testing.T) {
	t.Parallel()

	adapters := source.Registry{
		catalog.SourceFRED: &fixedAdapter{outcome: source.Outcome{RecordsFetched: 1}},
		catalog.SourceBLS:  &fixedAdapter{outcome: source.Outcome{RecordsFetched: 1}},
	}
	pool, sched, _, _, clk := testHarness(t, adapters)
	pool.cfg.PollInterval = 10 * time.Millisecond

	clk.Advance(366 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return sched.GetStats().CompletedToday == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after context cancel")
	}
}

func TestRunSweepExecutesUrgentJobsOnly(t *testing.T) {
	t.Parallel()

	adapters := source.Registry{
		catalog.SourceFRED: &fixedAdapter{outcome: source.Outcome{RecordsFetched: 3}},
		catalog.SourceBLS:  &fixedAdapter{outcome: source.Outcome{RecordsFetched: 3}},
	}
	pool, sched, _, _, clk := testHarness(t, adapters)

	clk.Advance(366 * 24 * time.Hour)

	ran := pool.RunSweep(context.Background())
	assert.Equal(t, 2, ran)
	assert.Equal(t, 2, sched.GetStats().CompletedToday)
}

func TestRunOnceExecutesReadyBatch(t *testing.T) {
	t.Parallel()

	adapters := source.Registry{
		catalog.SourceFRED: &fixedAdapter{outcome: source.Outcome{RecordsFetched: 5}},
		catalog.SourceBLS:  &fixedAdapter{outcome: source.Outcome{RecordsFetched: 5}},
	}
	pool, sched, _, _, clk := testHarness(t, adapters)

	assert.Equal(t, 0, pool.RunOnce(context.Background()))

	clk.Advance(366 * 24 * time.Hour)
	assert.Equal(t, 2, pool.RunOnce(context.Background()))
	assert.Equal(t, 2, sched.GetStats().CompletedToday)
}
