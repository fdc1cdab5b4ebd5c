// Package ratelimit implements the per-source request gate. Each provider has
// a requests-per-minute budget; the gate enforces the derived minimum interval
// between consecutive requests to that provider.
package ratelimit

import (
	"sync"
	"time"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/clock"
)

// Limiter tracks the last request time per source and answers whether a new
// request may be issued. It is a gate, not a queue: callers re-check before
// every dispatch.
type Limiter struct {
	mu         sync.Mutex
	lastCall   map[catalog.Source]time.Time
	budgets    map[catalog.Source]int
	defaultRPM int
	clk        clock.Clock
}

// Config holds rate limiter configuration.
type Config struct {
	// DefaultRequestsPerMinute applies to sources without an explicit budget.
	DefaultRequestsPerMinute int
	// RequestsPerMinute maps each source to its budget.
	RequestsPerMinute map[catalog.Source]int
}

// New creates a Limiter.
func New(cfg Config, clk clock.Clock) *Limiter {
	rpm := cfg.DefaultRequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	budgets := make(map[catalog.Source]int, len(cfg.RequestsPerMinute))
	for src, b := range cfg.RequestsPerMinute {
		if b > 0 {
			budgets[src] = b
		}
	}
	return &Limiter{
		lastCall:   make(map[catalog.Source]time.Time),
		budgets:    budgets,
		defaultRPM: rpm,
		clk:        clk,
	}
}

// MinInterval returns the minimum spacing between requests to the source.
func (l *Limiter) MinInterval(source catalog.Source) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minIntervalLocked(source)
}

func (l *Limiter) minIntervalLocked(source catalog.Source) time.Duration {
	rpm, ok := l.budgets[source]
	if !ok {
		rpm = l.defaultRPM
	}
	return time.Minute / time.Duration(rpm)
}

// CanRequest reports whether a request to the source is allowed now. It never
// records anything; callers that go on to issue the request must call
// RecordRequest, or use TryAcquire to do both atomically.
func (l *Limiter) CanRequest(source catalog.Source) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canRequestLocked(source)
}

func (l *Limiter) canRequestLocked(source catalog.Source) bool {
	last, ok := l.lastCall[source]
	if !ok {
		return true
	}
	return l.clk.Now().Sub(last) >= l.minIntervalLocked(source)
}

// RecordRequest marks the source as called now.
func (l *Limiter) RecordRequest(source catalog.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCall[source] = l.clk.Now()
}

// TryAcquire performs the check and the record under a single lock so two
// workers cannot both observe an open gate for the same source.
func (l *Limiter) TryAcquire(source catalog.Source) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.canRequestLocked(source) {
		return false
	}
	l.lastCall[source] = l.clk.Now()
	return true
}
