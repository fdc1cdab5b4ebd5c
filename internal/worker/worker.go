// Package worker implements the crawl execution loop over the scheduler queue.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/clock"
	"github.com/macrofeed/series-crawler/internal/metrics"
	"github.com/macrofeed/series-crawler/internal/publisher"
	"github.com/macrofeed/series-crawler/internal/scheduler"
	"github.com/macrofeed/series-crawler/internal/source"
	"github.com/macrofeed/series-crawler/internal/tracker"
)

// Config controls Pool behavior.
type Config struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	FetchTimeout time.Duration
	Topic        string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = c.Workers * 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.Topic == "" {
		c.Topic = "crawl-events"
	}
	return c
}

// Pool claims ready jobs from the scheduler and fans them out to workers.
type Pool struct {
	sched    *scheduler.Scheduler
	adapters source.Registry
	tracker  *tracker.Tracker
	pub      publisher.Publisher
	clk      clock.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Pool.
func New(
	sched *scheduler.Scheduler,
	adapters source.Registry,
	trk *tracker.Tracker,
	pub publisher.Publisher,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	return &Pool{
		sched:    sched,
		adapters: adapters,
		tracker:  trk,
		pub:      pub,
		clk:      clk,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Run blocks, polling for ready jobs and executing them until the context
// finishes. In-flight fetches drain before Run returns.
func (p *Pool) Run(ctx context.Context) {
	jobs := make(chan scheduler.CrawlJob)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				p.execute(ctx, job)
			}
		}()
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.dispatch(ctx, jobs)
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			p.dispatch(ctx, jobs)
		}
	}
}

// RunSweep claims and executes overdue high-priority jobs once, then returns.
func (p *Pool) RunSweep(ctx context.Context) int {
	urgent := p.sched.GetUrgentJobs()
	for _, job := range urgent {
		p.execute(ctx, job)
	}
	return len(urgent)
}

// RunOnce claims one batch of ready jobs and executes them synchronously.
func (p *Pool) RunOnce(ctx context.Context) int {
	ready := p.sched.GetReadyJobs(p.cfg.BatchSize)
	for _, job := range ready {
		p.execute(ctx, job)
	}
	return len(ready)
}

func (p *Pool) dispatch(ctx context.Context, jobs chan<- scheduler.CrawlJob) {
	ready := p.sched.GetReadyJobs(p.cfg.BatchSize)
	if len(ready) == 0 {
		return
	}
	p.logger.Debug("dispatching ready jobs", zap.Int("count", len(ready)))
	for _, job := range ready {
		select {
		case jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) execute(ctx context.Context, job scheduler.CrawlJob) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	jobID, err := p.sched.StartJob(job)
	if err != nil {
		p.logger.Error("start job failed",
			zap.String("series_id", job.SeriesID), zap.Error(err))
		return
	}

	attempt, err := p.tracker.Begin(ctx, job.SeriesID)
	if err != nil {
		p.logger.Warn("attempt log unavailable",
			zap.String("series_id", job.SeriesID), zap.Error(err))
	}

	adapter, ok := p.adapters[job.Source]
	if !ok {
		p.finishFailure(ctx, job, jobID, attempt,
			source.NewError(source.KindUnknown, "no adapter for source %s", job.Source))
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	outcome, err := adapter.Fetch(fetchCtx, job.SeriesID)
	cancel()

	if err != nil {
		p.finishFailure(ctx, job, jobID, attempt, err)
		return
	}
	p.finishSuccess(ctx, job, jobID, attempt, outcome)
}

func (p *Pool) finishSuccess(
	ctx context.Context,
	job scheduler.CrawlJob,
	jobID string,
	attempt tracker.Attempt,
	outcome source.Outcome,
) {
	now := p.clk.Now()

	if attempt.ID != "" {
		completion := tracker.Completion{
			Success:       true,
			DataFound:     outcome.RecordsFetched > 0,
			NewDataPoints: outcome.RecordsFetched,
		}
		if outcome.LatestDataDate != nil {
			latest := *outcome.LatestDataDate
			completion.LatestDataDate = &latest
			fresh := int(now.Sub(latest).Hours())
			if fresh < 0 {
				fresh = 0
			}
			completion.FreshnessHours = &fresh
		}
		respMs := int(outcome.ResponseTime.Milliseconds())
		completion.ResponseTimeMs = &respMs
		size := outcome.DataSizeBytes
		completion.DataSizeBytes = &size
		if err := p.tracker.Complete(ctx, attempt.ID, completion); err != nil {
			p.logger.Warn("complete attempt failed",
				zap.String("series_id", job.SeriesID), zap.Error(err))
		}
	}

	if err := p.sched.CompleteJob(ctx, jobID, outcome.RecordsFetched); err != nil {
		p.logger.Error("complete job failed",
			zap.String("series_id", job.SeriesID), zap.Error(err))
		return
	}

	metrics.ObserveCrawl(string(job.Source), string(scheduler.StatusCompleted),
		outcome.RecordsFetched, outcome.ResponseTime)
	p.publish(ctx, publisher.Event{
		SeriesID:       job.SeriesID,
		Source:         string(job.Source),
		Status:         string(scheduler.StatusCompleted),
		RecordsFetched: outcome.RecordsFetched,
		LatestDataDate: outcome.LatestDataDate,
		CompletedAt:    now,
	})
}

func (p *Pool) finishFailure(
	ctx context.Context,
	job scheduler.CrawlJob,
	jobID string,
	attempt tracker.Attempt,
	fetchErr error,
) {
	kind := source.Classify(fetchErr)

	if attempt.ID != "" {
		completion := tracker.Completion{
			Success:      false,
			ErrorType:    kind,
			ErrorMessage: fetchErr.Error(),
		}
		if err := p.tracker.Complete(ctx, attempt.ID, completion); err != nil {
			p.logger.Warn("complete attempt failed",
				zap.String("series_id", job.SeriesID), zap.Error(err))
		}
	}

	if err := p.sched.FailJob(ctx, jobID, kind, fetchErr.Error()); err != nil {
		p.logger.Error("fail job failed",
			zap.String("series_id", job.SeriesID), zap.Error(err))
		return
	}

	metrics.ObserveCrawlError(string(job.Source), string(kind))
	p.publish(ctx, publisher.Event{
		SeriesID:    job.SeriesID,
		Source:      string(job.Source),
		Status:      string(scheduler.StatusFailed),
		ErrorKind:   string(kind),
		CompletedAt: p.clk.Now(),
	})
}

func (p *Pool) publish(ctx context.Context, event publisher.Event) {
	if p.pub == nil {
		return
	}
	if _, err := p.pub.Publish(ctx, p.cfg.Topic, event); err != nil {
		p.logger.Warn("publish crawl event failed",
			zap.String("series_id", event.SeriesID), zap.Error(err))
	}
}
