package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/policy/ratelimit"
	"github.com/macrofeed/series-crawler/internal/source"
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
	return "job-" + string(rune('0'+g.n)), nil
}

// testCatalog keeps every active series on its own source: the rate gate
// allows one claim per source per instant, and the fake clock does not tick
// between claims in a batch.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.SeriesDefinition{
		{ID: "GDPC1", Name: "Real GDP", Category: catalog.NationalAccounts, Source: catalog.SourceFRED, Frequency: catalog.Quarterly, Priority: 1, IsActive: true},
		{ID: "UNRATE", Name: "Unemployment Rate", Category: catalog.LaborMarket, Source: catalog.SourceBEA, Frequency: catalog.Monthly, Priority: 3, IsActive: true},
		{ID: "CPIAUCSL", Name: "CPI", Category: catalog.Prices, Source: catalog.SourceBLS, Frequency: catalog.Monthly, Priority: 2, IsActive: true},
		{ID: "DORMANT", Name: "Inactive Series", Category: catalog.Prices, Source: catalog.SourceBLS, Frequency: catalog.Annual, Priority: 5, IsActive: false},
	})
	require.NoError(t, err)
	return cat
}

func newScheduler(t *testing.T) (*Scheduler, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(ratelimit.Config{DefaultRequestsPerMinute: 6000}, clk)
	s := New(testCatalog(t), limiter, nil, &seqIDs{}, clk, zap.NewNop(), Config{
		MaxConcurrentJobs: 2,
		DefaultRetryLimit: 3,
	})
	s.InitializeFromCatalog()
	return s, clk
}

// makeDue pulls every pending job's schedule into the past.
func makeDue(s *Scheduler, clk *fakeClock) {
	clk.Advance(366 * 24 * time.Hour)
}

func TestInitializeFromCatalogSkipsInactive(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	stats := s.GetStats()
	require.Equal(t, 4, stats.TotalSeries)
	require.Equal(t, 3, stats.ActiveSeries)
	require.Equal(t, 3, stats.PendingJobs)
	require.Zero(t, stats.RunningJobs)
}

func TestInitializeSchedulesOneIntervalOut(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	// Nothing is due immediately after a cold start.
	require.Empty(t, s.GetReadyJobs(10))
}

func TestGetReadyJobsPriorityOrder(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	jobs := s.GetReadyJobs(3)
	require.Len(t, jobs, 3)
	require.Equal(t, "GDPC1", jobs[0].SeriesID)    // priority 1
	require.Equal(t, "CPIAUCSL", jobs[1].SeriesID) // priority 2
	require.Equal(t, "UNRATE", jobs[2].SeriesID)   // priority 3
}

func TestGetReadyJobsStopsAtFirstNotDue(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)
	require.NoError(t, s.TriggerManualCrawl("GDPC1")) // keep it due

	// Push the priority-1 job into the future; everything behind it is due
	// but must not be picked over it.
	s.mu.Lock()
	for i := range s.queue {
		if s.queue[i].SeriesID == "GDPC1" {
			s.queue[i].NextScheduledCrawl = clk.Now().Add(48 * time.Hour)
		}
	}
	s.sortQueueLocked()
	s.mu.Unlock()

	require.Empty(t, s.GetReadyJobs(3))
}

func TestGetReadyJobsHonorsRateGate(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New([]catalog.SeriesDefinition{
		{ID: "DGS10", Name: "10-Year Treasury Yield", Category: catalog.MonetaryPolicy, Source: catalog.SourceFRED, Frequency: catalog.Monthly, Priority: 1, IsActive: true},
		{ID: "DFF", Name: "Federal Funds Rate", Category: catalog.MonetaryPolicy, Source: catalog.SourceFRED, Frequency: catalog.Monthly, Priority: 2, IsActive: true},
		{ID: "CPIAUCSL", Name: "CPI", Category: catalog.Prices, Source: catalog.SourceBLS, Frequency: catalog.Monthly, Priority: 3, IsActive: true},
	})
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(ratelimit.Config{DefaultRequestsPerMinute: 1}, clk)
	s := New(cat, limiter, nil, &seqIDs{}, clk, zap.NewNop(), Config{})
	s.InitializeFromCatalog()
	clk.Advance(366 * 24 * time.Hour)

	// All three jobs are due, but at one request per source per minute the
	// second FRED job's gate is closed, and the scan stops there: the due BLS
	// job behind it is not picked either.
	jobs := s.GetReadyJobs(3)
	require.Len(t, jobs, 1)
	require.Equal(t, "DGS10", jobs[0].SeriesID)

	// Once the interval elapses the remaining jobs flow through.
	clk.Advance(2 * time.Minute)
	jobs = s.GetReadyJobs(3)
	require.Len(t, jobs, 2)
	require.Equal(t, "DFF", jobs[0].SeriesID)
	require.Equal(t, "CPIAUCSL", jobs[1].SeriesID)
}

func TestCompleteJobReschedulesByFrequency(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	jobs := s.GetReadyJobs(3)
	var monthly CrawlJob
	for _, j := range jobs {
		if j.SeriesID == "UNRATE" {
			monthly = j
		}
	}
	require.Equal(t, "UNRATE", monthly.SeriesID)

	jobID, err := s.StartJob(monthly)
	require.NoError(t, err)
	completedAt := clk.Now()
	require.NoError(t, s.CompleteJob(context.Background(), jobID, 42))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.queue {
		if j.SeriesID == "UNRATE" {
			require.Equal(t, completedAt.Add(30*24*time.Hour), j.NextScheduledCrawl)
			require.NotNil(t, j.LastSuccessfulCrawl)
			require.Equal(t, completedAt, *j.LastSuccessfulCrawl)
			return
		}
	}
	t.Fatal("UNRATE not re-enqueued after completion")
}

func TestCompleteJobUnknownIDErrors(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	err := s.CompleteJob(context.Background(), "no-such-job", 1)
	require.ErrorIs(t, err, ErrUnknownJob)
}

func TestFailJobRetriesThenTerminal(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	ctx := context.Background()
	for attempt := 1; attempt <= 4; attempt++ {
		var job CrawlJob
		found := false
		for _, j := range s.GetReadyJobs(3) {
			if j.SeriesID == "GDPC1" {
				job, found = j, true
			} else {
				// Put unrelated claims back by completing them is overkill;
				// re-enqueue via manual trigger. They stay pending.
				jobID, err := s.StartJob(j)
				require.NoError(t, err)
				require.NoError(t, s.CompleteJob(ctx, jobID, 0))
			}
		}
		require.True(t, found, "attempt %d: GDPC1 not ready", attempt)

		jobID, err := s.StartJob(job)
		require.NoError(t, err)
		require.NoError(t, s.FailJob(ctx, jobID, source.KindNetwork, "connection refused"))

		if attempt <= 3 {
			require.Empty(t, s.GetFailedJobs(), "attempt %d should still retry", attempt)
			// Jump past the priority-1 retry delay (5 minutes).
			clk.Advance(6 * time.Minute)
		}
	}

	failed := s.GetFailedJobs()
	require.Len(t, failed, 1)
	require.Equal(t, "GDPC1", failed[0].SeriesID)
	require.Equal(t, StatusFailed, failed[0].Status)
	require.Equal(t, 4, failed[0].RetryCount)
	require.Nil(t, failed[0].NextRetry)

	// Terminal jobs are not re-enqueued.
	clk.Advance(365 * 24 * time.Hour)
	for _, j := range s.GetReadyJobs(10) {
		require.NotEqual(t, "GDPC1", j.SeriesID)
	}
}

func TestFailJobRetryDelayByPriority(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	var job CrawlJob
	for _, j := range s.GetReadyJobs(3) {
		if j.SeriesID == "UNRATE" { // priority 3 -> 30 minutes
			job = j
		}
	}
	require.Equal(t, "UNRATE", job.SeriesID)

	jobID, err := s.StartJob(job)
	require.NoError(t, err)
	failedAt := clk.Now()
	require.NoError(t, s.FailJob(context.Background(), jobID, source.KindServerError, "503"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.queue {
		if j.SeriesID == "UNRATE" {
			require.Equal(t, failedAt.Add(30*time.Minute), j.NextScheduledCrawl)
			return
		}
	}
	t.Fatal("UNRATE not re-enqueued for retry")
}

func TestFailJobTerminalKindShortCircuits(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	var job CrawlJob
	for _, j := range s.GetReadyJobs(3) {
		if j.SeriesID == "CPIAUCSL" {
			job = j
		}
	}
	require.Equal(t, "CPIAUCSL", job.SeriesID)

	jobID, err := s.StartJob(job)
	require.NoError(t, err)
	require.NoError(t, s.FailJob(context.Background(), jobID, source.KindAuthentication, "401"))

	// One authentication failure is enough to park the series.
	failed := s.GetFailedJobs()
	require.Len(t, failed, 1)
	require.Equal(t, "CPIAUCSL", failed[0].SeriesID)
	require.Equal(t, 1, failed[0].RetryCount)
}

func TestResetFailedJobRequeuesImmediately(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	var job CrawlJob
	for _, j := range s.GetReadyJobs(3) {
		if j.SeriesID == "CPIAUCSL" {
			job = j
		}
	}
	jobID, err := s.StartJob(job)
	require.NoError(t, err)
	require.NoError(t, s.FailJob(context.Background(), jobID, source.KindNotFound, "404"))
	require.Len(t, s.GetFailedJobs(), 1)

	require.NoError(t, s.ResetFailedJob("CPIAUCSL"))
	require.Empty(t, s.GetFailedJobs())

	// Let the BLS gate reopen after the claim above.
	clk.Advance(time.Second)
	found := false
	for _, j := range s.GetReadyJobs(10) {
		if j.SeriesID == "CPIAUCSL" {
			found = true
		}
	}
	require.True(t, found, "reset series should be immediately due")
}

func TestResetFailedJobErrors(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	require.Error(t, s.ResetFailedJob("UNRATE"))      // not failed
	require.Error(t, s.ResetFailedJob("NONEXISTENT")) // unknown series
}

func TestPauseAndResumeSource(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	var fredJob CrawlJob
	for _, j := range s.GetReadyJobs(1) {
		fredJob = j
	}
	require.Equal(t, catalog.SourceFRED, fredJob.Source)
	_, err := s.StartJob(fredJob)
	require.NoError(t, err)

	s.PauseSource(catalog.SourceFRED)
	stats := s.GetStats()
	require.Zero(t, stats.RunningJobs)

	// The paused job is delayed an hour, so not ready now.
	for _, j := range s.GetReadyJobs(10) {
		require.NotEqual(t, fredJob.SeriesID, j.SeriesID)
	}

	s.ResumeSource(catalog.SourceFRED)
	// Let the FRED gate reopen after the claim above.
	clk.Advance(time.Second)
	found := false
	for _, j := range s.GetReadyJobs(10) {
		if j.SeriesID == fredJob.SeriesID {
			found = true
		}
	}
	require.True(t, found, "resumed job should be due immediately")
}

func TestGetUrgentJobsOnlyOverdueHighPriority(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)

	// Fresh init: nothing is overdue yet.
	require.Empty(t, s.GetUrgentJobs())

	makeDue(s, clk)
	clk.Advance(2 * time.Hour)

	urgent := s.GetUrgentJobs()
	require.Len(t, urgent, 2)
	require.Equal(t, "GDPC1", urgent[0].SeriesID)
	require.Equal(t, "CPIAUCSL", urgent[1].SeriesID)
}

func TestGetStatsIdempotent(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)
	jobs := s.GetReadyJobs(1)
	require.Len(t, jobs, 1)
	jobID, err := s.StartJob(jobs[0])
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	require.NoError(t, s.CompleteJob(context.Background(), jobID, 10))

	first := s.GetStats()
	second := s.GetStats()
	require.Equal(t, first, second)
	require.Equal(t, 1, first.CompletedToday)
	require.InDelta(t, 30.0, first.AverageCrawlSeconds, 1e-9)
	require.InDelta(t, 100.0, first.SuccessRate24h, 1e-9)
	require.NotNil(t, first.EstimatedCompletion)
}

func TestTriggerManualCrawlRejectsRunningSeries(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)
	jobs := s.GetReadyJobs(1)
	require.Len(t, jobs, 1)
	_, err := s.StartJob(jobs[0])
	require.NoError(t, err)

	require.Error(t, s.TriggerManualCrawl(jobs[0].SeriesID))
}

func TestTriggerManualCrawlRejectsTerminalFailedSeries(t *testing.T) {
	t.Parallel()

	s, clk := newScheduler(t)
	makeDue(s, clk)

	var job CrawlJob
	for _, j := range s.GetReadyJobs(3) {
		if j.SeriesID == "CPIAUCSL" {
			job = j
		}
	}
	require.Equal(t, "CPIAUCSL", job.SeriesID)
	jobID, err := s.StartJob(job)
	require.NoError(t, err)
	require.NoError(t, s.FailJob(context.Background(), jobID, source.KindAuthentication, "401"))
	require.Len(t, s.GetFailedJobs(), 1)

	// The terminal record stays put until the operator resets it.
	require.Error(t, s.TriggerManualCrawl("CPIAUCSL"))
	require.Len(t, s.GetFailedJobs(), 1)

	require.NoError(t, s.ResetFailedJob("CPIAUCSL"))
	require.NoError(t, s.TriggerManualCrawl("CPIAUCSL"))
}

func TestJobsByCategoryAndPriority(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	prices := s.JobsByCategory(catalog.Prices)
	require.Len(t, prices, 1)
	require.Equal(t, "CPIAUCSL", prices[0].SeriesID)

	p1 := s.JobsByPriority(1)
	require.Len(t, p1, 1)
	require.Equal(t, "GDPC1", p1[0].SeriesID)
}
