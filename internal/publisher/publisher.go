// Package publisher emits crawl completion events for downstream ingestion
// pipelines.
package publisher

import (
	"context"
	"time"
)

// Event announces that a crawl finished, successfully or not.
type Event struct {
	SeriesID       string     `json:"series_id"`
	Source         string     `json:"source"`
	Status         string     `json:"status"`
	RecordsFetched int        `json:"records_fetched"`
	LatestDataDate *time.Time `json:"latest_data_date,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// Publisher delivers events to a topic. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) (string, error)
}
