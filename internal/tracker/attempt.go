// Package tracker keeps the append-only log of crawl attempts and derives the
// rolling statistics that drive adaptive crawl cadence.
package tracker

import (
	"time"

	"github.com/macrofeed/series-crawler/internal/source"
)

// Attempt is one crawl attempt against one series. It is created when the
// fetch starts and completed exactly once; afterwards it is never mutated.
type Attempt struct {
	ID          string     `json:"id"`
	SeriesID    string     `json:"series_id"`
	AttemptedAt time.Time  `json:"attempted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Success        bool       `json:"success"`
	DataFound      bool       `json:"data_found"`
	NewDataPoints  int        `json:"new_data_points"`
	LatestDataDate *time.Time `json:"latest_data_date,omitempty"`
	// FreshnessHours is the gap between the newest available observation and
	// the moment of the crawl that saw it.
	FreshnessHours *int `json:"data_freshness_hours,omitempty"`

	ErrorType    source.ErrorKind `json:"error_type,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`

	ResponseTimeMs *int `json:"response_time_ms,omitempty"`
	DataSizeBytes  *int `json:"data_size_bytes,omitempty"`
}

// Completion carries everything learned when a fetch finishes.
type Completion struct {
	Success        bool
	DataFound      bool
	NewDataPoints  int
	LatestDataDate *time.Time
	FreshnessHours *int
	ErrorType      source.ErrorKind
	ErrorMessage   string
	ResponseTimeMs *int
	DataSizeBytes  *int
}

// Statistics is the derived, window-bounded view over a series' attempts.
type Statistics struct {
	SeriesID           string   `json:"series_id"`
	TotalAttempts      int      `json:"total_attempts"`
	SuccessfulAttempts int      `json:"successful_attempts"`
	DataFoundAttempts  int      `json:"data_found_attempts"`
	SuccessRate        float64  `json:"success_rate"`
	DataFoundRate      float64  `json:"data_found_rate"`
	AvgFreshnessHours  *float64 `json:"avg_freshness_hours,omitempty"`
	AvgResponseTimeMs  *float64 `json:"avg_response_time_ms,omitempty"`

	// RecommendedFrequencyHours is the adaptive cadence for this series.
	RecommendedFrequencyHours int `json:"recommended_crawl_frequency_hours"`
}

// DefaultStatistics is returned when a series has no attempts in the window.
func DefaultStatistics(seriesID string) Statistics {
	return Statistics{
		SeriesID:                  seriesID,
		RecommendedFrequencyHours: defaultFrequencyHours,
	}
}

// Cadence bounds and defaults, in hours.
const (
	minFrequencyHours     = 1
	maxFrequencyHours     = 672 // four weeks
	defaultFrequencyHours = 24
)

// RecommendFrequencyHours computes the adaptive crawl cadence from historical
// statistics. Fresher data pulls the cadence down; unreliable or rarely
// updated series are polled less often so their provider budget goes to series
// that actually yield data.
func RecommendFrequencyHours(successRate float64, avgFreshnessHours *float64, dataFoundRate float64) int {
	base := defaultFrequencyHours
	if avgFreshnessHours != nil {
		switch {
		case *avgFreshnessHours < 24:
			base = 6
		case *avgFreshnessHours < 168:
			base = 24
		default:
			base = 168
		}
	}

	switch {
	case successRate > 0.9:
		// keep
	case successRate > 0.7:
		base *= 2
	default:
		base *= 4
	}

	switch {
	case dataFoundRate > 0.8:
		// keep
	case dataFoundRate > 0.5:
		base *= 2
	default:
		base *= 4
	}

	if base < minFrequencyHours {
		base = minFrequencyHours
	}
	if base > maxFrequencyHours {
		base = maxFrequencyHours
	}
	return base
}
