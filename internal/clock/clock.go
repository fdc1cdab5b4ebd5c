// Package clock defines the time source abstraction used by the scheduler,
// rate limiter and attempt tracker so tests can run against a fake clock.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
