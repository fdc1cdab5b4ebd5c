// Package source defines the provider adapter capability the scheduler
// dispatches against, plus the closed error taxonomy crawl failures are
// classified into.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macrofeed/series-crawler/internal/catalog"
)

// Outcome is what a successful fetch reports back to the scheduler.
type Outcome struct {
	RecordsFetched int
	LatestDataDate *time.Time
	DataSizeBytes  int
	ResponseTime   time.Duration
}

// ErrorKind is the closed set of failure categories. Retry logic branches on
// the kind, never on message text.
type ErrorKind string

// Failure categories. Network, RateLimit, Timeout and ServerError are
// transient; Authentication, NotFound and DataFormat are not.
const (
	KindNetwork        ErrorKind = "network"
	KindRateLimit      ErrorKind = "rate_limit"
	KindTimeout        ErrorKind = "timeout"
	KindServerError    ErrorKind = "server_error"
	KindAuthentication ErrorKind = "authentication"
	KindNotFound       ErrorKind = "not_found"
	KindDataFormat     ErrorKind = "data_format"
	KindUnknown        ErrorKind = "unknown"
)

// Retryable reports whether failures of this kind are worth retrying.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindAuthentication, KindNotFound, KindDataFormat:
		return false
	}
	return true
}

// FetchError carries the error kind alongside free-text detail.
type FetchError struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewError builds a classified fetch error.
func NewError(kind ErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Classify extracts the error kind from err, mapping context timeouts to
// KindTimeout and anything unclassified to KindUnknown.
func Classify(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Adapter performs the network fetch for one provider and classifies the
// outcome. Implementations must bound every fetch with the supplied context.
type Adapter interface {
	Fetch(ctx context.Context, seriesID string) (Outcome, error)
}

// Registry maps catalog sources to their adapters.
type Registry map[catalog.Source]Adapter
