// Package scheduler owns the crawl job queue, the running set and the job
// history, and decides what gets fetched next and when.
package scheduler

import (
	"time"

	"github.com/macrofeed/series-crawler/internal/catalog"
)

// Status is the lifecycle state of a series' crawl.
type Status string

// Job lifecycle states. Retrying re-enters Pending after its delay; Failed is
// terminal until an operator resets it.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// CrawlJob is the scheduler's unit of work for one series. Owned exclusively
// by the Scheduler; callers only ever see copies.
type CrawlJob struct {
	SeriesID            string            `json:"series_id"`
	Priority            int               `json:"priority"`
	Frequency           catalog.Frequency `json:"frequency"`
	Source              catalog.Source    `json:"source"`
	Category            catalog.Category  `json:"category"`
	RetryLimit          int               `json:"retry_limit"`
	RetryDelay          time.Duration     `json:"retry_delay"`
	LastSuccessfulCrawl *time.Time        `json:"last_successful_crawl,omitempty"`
	NextScheduledCrawl  time.Time         `json:"next_scheduled_crawl"`
}

// CrawlResult records the latest outcome for a series. Failed results keep a
// monotonically growing retry count until the retry limit is exceeded, after
// which NextRetry is nil and the slot is terminal.
type CrawlResult struct {
	SeriesID       string     `json:"series_id"`
	Status         Status     `json:"status"`
	RecordsFetched int        `json:"records_fetched"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	NextRetry      *time.Time `json:"next_retry,omitempty"`
}

// Terminal reports whether the result is a terminal failure.
func (r CrawlResult) Terminal() bool {
	return r.Status == StatusFailed && r.NextRetry == nil
}

// CrawlerStats is a point-in-time snapshot of scheduler health.
type CrawlerStats struct {
	TotalSeries         int        `json:"total_series"`
	ActiveSeries        int        `json:"active_series"`
	CompletedToday      int        `json:"completed_today"`
	FailedToday         int        `json:"failed_today"`
	PendingJobs         int        `json:"pending_jobs"`
	RunningJobs         int        `json:"running_jobs"`
	AverageCrawlSeconds float64    `json:"average_crawl_time_seconds"`
	SuccessRate24h      float64    `json:"success_rate_24h"`
	NextHighPriorityJob *time.Time `json:"next_high_priority_job,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion_time,omitempty"`
}
