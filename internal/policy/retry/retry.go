// Package retry holds the stateless retry policy: how long a failed series
// waits before another attempt, and when failures become terminal.
package retry

import (
	"time"

	"github.com/macrofeed/series-crawler/internal/source"
)

// DefaultLimit is the number of retries a job gets unless overridden.
const DefaultLimit = 3

// DelayForPriority returns the wait before retrying a failed crawl. Higher
// priority series (lower numbers) recover faster after transient failures.
func DelayForPriority(priority int) time.Duration {
	switch priority {
	case 1:
		return 5 * time.Minute
	case 2:
		return 15 * time.Minute
	case 3:
		return 30 * time.Minute
	case 4:
		return 60 * time.Minute
	default:
		return 120 * time.Minute
	}
}

// ShouldRetry reports whether another attempt is allowed after retryCount
// failures against the given limit.
func ShouldRetry(retryCount, retryLimit int) bool {
	return retryCount <= retryLimit
}

// Terminal reports whether an error kind should skip the retry budget and go
// straight to the terminal failed state. Authentication, not-found and
// data-format failures do not heal on their own.
func Terminal(kind source.ErrorKind) bool {
	return !kind.Retryable()
}
