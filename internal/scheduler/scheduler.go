package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/clock"
	"github.com/macrofeed/series-crawler/internal/policy/ratelimit"
	"github.com/macrofeed/series-crawler/internal/policy/retry"
	"github.com/macrofeed/series-crawler/internal/source"
)

// ErrUnknownJob signals a completion or failure report for a job id that is
// not in the running set. That is a scheduler/worker desynchronization bug,
// never a retryable condition.
var ErrUnknownJob = fmt.Errorf("job not found in running set")

// ResultStore persists crawl results so failed-job triage survives restarts.
type ResultStore interface {
	SaveResult(ctx context.Context, result CrawlResult) error
	ListFailed(ctx context.Context) ([]CrawlResult, error)
}

// IDGenerator produces opaque job ids for the running set.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes Scheduler behavior.
type Config struct {
	MaxConcurrentJobs int
	DefaultRetryLimit int
}

type runningJob struct {
	job       CrawlJob
	startedAt time.Time
}

// Scheduler is the single owning component for all mutable scheduling state.
// Every operation takes the one lock; network fetches happen in workers, never
// inside it.
type Scheduler struct {
	mu        sync.Mutex
	queue     []CrawlJob
	running   map[string]runningJob
	completed map[string]CrawlResult
	failed    map[string]CrawlResult

	catalog *catalog.Catalog
	limiter *ratelimit.Limiter
	results ResultStore
	ids     IDGenerator
	clk     clock.Clock
	logger  *zap.Logger
	cfg     Config
}

// New constructs a Scheduler. The results store may be nil, in which case
// history is kept in memory only.
func New(
	cat *catalog.Catalog,
	limiter *ratelimit.Limiter,
	results ResultStore,
	ids IDGenerator,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) *Scheduler {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 5
	}
	if cfg.DefaultRetryLimit <= 0 {
		cfg.DefaultRetryLimit = retry.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		running:   make(map[string]runningJob),
		completed: make(map[string]CrawlResult),
		failed:    make(map[string]CrawlResult),
		catalog:   cat,
		limiter:   limiter,
		results:   results,
		ids:       ids,
		clk:       clk,
		logger:    logger,
		cfg:       cfg,
	}
}

// InitializeFromCatalog builds one pending job per active series. Jobs start
// one frequency interval out so a cold start does not trigger a crawl storm.
func (s *Scheduler) InitializeFromCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	s.queue = s.queue[:0]
	for _, def := range s.catalog.Active() {
		s.queue = append(s.queue, CrawlJob{
			SeriesID:           def.ID,
			Priority:           def.Priority,
			Frequency:          def.Frequency,
			Source:             def.Source,
			Category:           def.Category,
			RetryLimit:         s.cfg.DefaultRetryLimit,
			RetryDelay:         retry.DelayForPriority(def.Priority),
			NextScheduledCrawl: now.Add(def.Frequency.Interval()),
		})
	}
	s.sortQueueLocked()
	s.logger.Info("scheduler initialized",
		zap.Int("pending_jobs", len(s.queue)),
		zap.Int("catalog_series", s.catalog.Len()),
	)
}

// RestoreFailed reloads terminal failure records from the result store so
// operator triage survives a restart. Series restored as terminal are removed
// from the pending queue.
func (s *Scheduler) RestoreFailed(ctx context.Context) error {
	if s.results == nil {
		return nil
	}
	failed, err := s.results.ListFailed(ctx)
	if err != nil {
		return fmt.Errorf("load failed results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range failed {
		if !r.Terminal() {
			continue
		}
		s.failed[r.SeriesID] = r
		s.removeQueuedLocked(r.SeriesID)
	}
	s.sortQueueLocked()
	return nil
}

// sortQueueLocked keeps the queue ordered by ascending priority, ties broken
// by ascending next scheduled time. Must be called after every mutation that
// touches either field.
func (s *Scheduler) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].Priority != s.queue[j].Priority {
			return s.queue[i].Priority < s.queue[j].Priority
		}
		return s.queue[i].NextScheduledCrawl.Before(s.queue[j].NextScheduledCrawl)
	})
}

func (s *Scheduler) removeQueuedLocked(seriesID string) {
	for i, job := range s.queue {
		if job.SeriesID == seriesID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// GetReadyJobs claims up to maxJobs due jobs from the front of the queue. A
// job is ready when its schedule has arrived and the source's rate gate opens;
// the gate is acquired atomically at claim time. Scanning stops at the first
// job that is not ready: the queue is sorted, so nothing behind a blocked
// high-priority job is picked opportunistically.
func (s *Scheduler) GetReadyJobs(maxJobs int) []CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	var ready []CrawlJob
	for len(ready) < maxJobs && len(s.queue) > 0 {
		job := s.queue[0]
		if job.NextScheduledCrawl.After(now) || !s.limiter.TryAcquire(job.Source) {
			break
		}
		s.queue = s.queue[1:]
		ready = append(ready, job)
	}
	return ready
}

// GetUrgentJobs pops high-priority jobs (priority <= 2) that are more than an
// hour overdue, honoring the rate gate. Used by the operator "catch up" sweep
// independent of the normal batch cadence.
func (s *Scheduler) GetUrgentJobs() []CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clk.Now().Add(-time.Hour)
	var urgent []CrawlJob
	for len(s.queue) > 0 {
		job := s.queue[0]
		if job.Priority > 2 || job.NextScheduledCrawl.After(cutoff) {
			break
		}
		if !s.limiter.TryAcquire(job.Source) {
			break
		}
		s.queue = s.queue[1:]
		urgent = append(urgent, job)
	}
	return urgent
}

// StartJob moves a claimed job into the running set and returns its opaque
// job id.
func (s *Scheduler) StartJob(job CrawlJob) (string, error) {
	jobID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[jobID] = runningJob{job: job, startedAt: s.clk.Now()}
	return jobID, nil
}

// CompleteJob reports a successful crawl. The job leaves the running set, a
// Completed result replaces the series' history slot, and the job re-enters
// the queue one frequency interval out. Completing a series also clears any
// in-progress retry chain.
func (s *Scheduler) CompleteJob(ctx context.Context, jobID string, recordsFetched int) error {
	s.mu.Lock()
	run, ok := s.running[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("complete job %s: %w", jobID, ErrUnknownJob)
	}
	delete(s.running, jobID)

	now := s.clk.Now()
	result := CrawlResult{
		SeriesID:       run.job.SeriesID,
		Status:         StatusCompleted,
		RecordsFetched: recordsFetched,
		StartTime:      run.startedAt,
		EndTime:        &now,
	}
	s.completed[run.job.SeriesID] = result
	delete(s.failed, run.job.SeriesID)

	job := run.job
	job.LastSuccessfulCrawl = &now
	job.NextScheduledCrawl = now.Add(job.Frequency.Interval())
	s.queue = append(s.queue, job)
	s.sortQueueLocked()
	s.mu.Unlock()

	s.persistResult(ctx, result)
	s.logger.Debug("job completed",
		zap.String("series_id", job.SeriesID),
		zap.Int("records", recordsFetched),
		zap.Time("next_crawl", job.NextScheduledCrawl),
	)
	return nil
}

// FailJob reports a failed crawl. The retry count is looked up from the
// series' failure history rather than trusted from the caller. Within the
// retry budget the job re-enters the queue after its priority's retry delay;
// past the budget, or for error kinds that cannot heal (authentication,
// not-found, data-format), the series parks in the terminal failed state
// until an operator resets it.
func (s *Scheduler) FailJob(ctx context.Context, jobID string, kind source.ErrorKind, errMsg string) error {
	s.mu.Lock()
	run, ok := s.running[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("fail job %s: %w", jobID, ErrUnknownJob)
	}
	delete(s.running, jobID)

	now := s.clk.Now()
	retryCount := 1
	if prev, ok := s.failed[run.job.SeriesID]; ok {
		retryCount = prev.RetryCount + 1
	}

	willRetry := !retry.Terminal(kind) && retry.ShouldRetry(retryCount, run.job.RetryLimit)

	result := CrawlResult{
		SeriesID:     run.job.SeriesID,
		Status:       StatusFailed,
		StartTime:    run.startedAt,
		EndTime:      &now,
		ErrorMessage: errMsg,
		RetryCount:   retryCount,
	}
	if willRetry {
		result.Status = StatusRetrying
		next := now.Add(run.job.RetryDelay)
		result.NextRetry = &next
	}
	s.failed[run.job.SeriesID] = result

	if willRetry {
		job := run.job
		job.NextScheduledCrawl = *result.NextRetry
		s.queue = append(s.queue, job)
		s.sortQueueLocked()
	}
	s.mu.Unlock()

	s.persistResult(ctx, result)
	if willRetry {
		s.logger.Warn("job failed, retry scheduled",
			zap.String("series_id", run.job.SeriesID),
			zap.String("error_kind", string(kind)),
			zap.Int("retry_count", retryCount),
			zap.Timep("next_retry", result.NextRetry),
		)
	} else {
		s.logger.Error("job failed terminally",
			zap.String("series_id", run.job.SeriesID),
			zap.String("error_kind", string(kind)),
			zap.Int("retry_count", retryCount),
			zap.String("error", errMsg),
		)
	}
	return nil
}

// PauseSource pulls the source's running jobs back into the queue and pushes
// every queue entry for the source out by an hour. Used ahead of planned
// provider maintenance.
func (s *Scheduler) PauseSource(src catalog.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.clk.Now().Add(time.Hour)
	for jobID, run := range s.running {
		if run.job.Source != src {
			continue
		}
		delete(s.running, jobID)
		job := run.job
		job.NextScheduledCrawl = delay
		s.queue = append(s.queue, job)
	}
	for i := range s.queue {
		if s.queue[i].Source == src && s.queue[i].NextScheduledCrawl.Before(delay) {
			s.queue[i].NextScheduledCrawl = delay
		}
	}
	s.sortQueueLocked()
	s.logger.Info("source paused", zap.String("source", string(src)))
}

// ResumeSource pulls the source's future-scheduled queue entries forward to
// now.
func (s *Scheduler) ResumeSource(src catalog.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	for i := range s.queue {
		if s.queue[i].Source == src && s.queue[i].NextScheduledCrawl.After(now) {
			s.queue[i].NextScheduledCrawl = now
		}
	}
	s.sortQueueLocked()
	s.logger.Info("source resumed", zap.String("source", string(src)))
}

// GetStats returns a consistent snapshot of scheduler health. Calling it has
// no side effects; two calls with no intervening mutation return identical
// results.
func (s *Scheduler) GetStats() CrawlerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := CrawlerStats{
		TotalSeries:  s.catalog.Len(),
		ActiveSeries: len(s.catalog.Active()),
		PendingJobs:  len(s.queue),
		RunningJobs:  len(s.running),
	}

	var durationSum float64
	var durationN int
	for _, r := range s.completed {
		if r.EndTime == nil {
			continue
		}
		if !r.EndTime.Before(todayStart) {
			stats.CompletedToday++
		}
		durationSum += r.EndTime.Sub(r.StartTime).Seconds()
		durationN++
	}
	for _, r := range s.failed {
		if r.EndTime != nil && !r.EndTime.Before(todayStart) {
			stats.FailedToday++
		}
	}

	if total := stats.CompletedToday + stats.FailedToday; total > 0 {
		stats.SuccessRate24h = float64(stats.CompletedToday) / float64(total) * 100
	}
	if durationN > 0 {
		stats.AverageCrawlSeconds = durationSum / float64(durationN)
	}

	for _, job := range s.queue {
		if job.Priority > 2 {
			continue
		}
		if stats.NextHighPriorityJob == nil || job.NextScheduledCrawl.Before(*stats.NextHighPriorityJob) {
			next := job.NextScheduledCrawl
			stats.NextHighPriorityJob = &next
		}
	}

	if len(s.queue) > 0 && stats.AverageCrawlSeconds > 0 {
		backlog := float64(len(s.queue)) * stats.AverageCrawlSeconds / float64(s.cfg.MaxConcurrentJobs)
		eta := now.Add(time.Duration(backlog * float64(time.Second)))
		stats.EstimatedCompletion = &eta
	}
	return stats
}

// GetFailedJobs returns the series currently parked in the terminal failed
// state, for operator triage. They never auto-retry.
func (s *Scheduler) GetFailedJobs() []CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CrawlResult
	for _, r := range s.failed {
		if r.Terminal() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeriesID < out[j].SeriesID })
	return out
}

// ResetFailedJob clears a terminal failure and re-enqueues the series for an
// immediate crawl.
func (s *Scheduler) ResetFailedJob(seriesID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.failed[seriesID]
	if !ok || !result.Terminal() {
		return fmt.Errorf("series %s is not in a terminal failed state", seriesID)
	}
	def, ok := s.catalog.ByID(seriesID)
	if !ok {
		return fmt.Errorf("series definition not found for %s", seriesID)
	}
	delete(s.failed, seriesID)

	s.queue = append(s.queue, CrawlJob{
		SeriesID:           def.ID,
		Priority:           def.Priority,
		Frequency:          def.Frequency,
		Source:             def.Source,
		Category:           def.Category,
		RetryLimit:         s.cfg.DefaultRetryLimit,
		RetryDelay:         retry.DelayForPriority(def.Priority),
		NextScheduledCrawl: s.clk.Now(),
	})
	s.sortQueueLocked()
	s.logger.Info("failed job reset", zap.String("series_id", seriesID))
	return nil
}

// TriggerManualCrawl pulls the series' next crawl forward to now. Series
// absent from the queue (but present in the catalog) are enqueued fresh; a
// series already running is left alone. A terminally failed series must go
// through ResetFailedJob first so its retry chain starts clean.
func (s *Scheduler) TriggerManualCrawl(seriesID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.running {
		if run.job.SeriesID == seriesID {
			return fmt.Errorf("series %s is already running", seriesID)
		}
	}
	if result, ok := s.failed[seriesID]; ok && result.Terminal() {
		return fmt.Errorf("series %s failed terminally; reset it before crawling again", seriesID)
	}
	now := s.clk.Now()
	for i := range s.queue {
		if s.queue[i].SeriesID == seriesID {
			s.queue[i].NextScheduledCrawl = now
			s.sortQueueLocked()
			return nil
		}
	}
	def, ok := s.catalog.ByID(seriesID)
	if !ok {
		return fmt.Errorf("series definition not found for %s", seriesID)
	}
	s.queue = append(s.queue, CrawlJob{
		SeriesID:           def.ID,
		Priority:           def.Priority,
		Frequency:          def.Frequency,
		Source:             def.Source,
		Category:           def.Category,
		RetryLimit:         s.cfg.DefaultRetryLimit,
		RetryDelay:         retry.DelayForPriority(def.Priority),
		NextScheduledCrawl: now,
	})
	s.sortQueueLocked()
	return nil
}

// JobsByCategory returns copies of pending jobs in the given category.
func (s *Scheduler) JobsByCategory(cat catalog.Category) []CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CrawlJob
	for _, job := range s.queue {
		if job.Category == cat {
			out = append(out, job)
		}
	}
	return out
}

// JobsByPriority returns copies of pending jobs at the given priority level.
func (s *Scheduler) JobsByPriority(priority int) []CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CrawlJob
	for _, job := range s.queue {
		if job.Priority == priority {
			out = append(out, job)
		}
	}
	return out
}

func (s *Scheduler) persistResult(ctx context.Context, result CrawlResult) {
	if s.results == nil {
		return
	}
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.logger.Warn("persist crawl result failed",
			zap.String("series_id", result.SeriesID),
			zap.Error(err),
		)
	}
}
