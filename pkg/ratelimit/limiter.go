// Package ratelimit provides sliding-window rate limiting keyed by identity
// (IP address or subject id) plus HTTP middleware for public endpoints.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and records events against a per-key sliding window.
// Implementations backed by a shared store may fail; the in-memory
// implementation never returns an error. Callers decide whether a backend
// failure fails open or closed.
type Limiter interface {
	CheckAndRecord(ctx context.Context, key string, window time.Duration, max int) (Result, error)
}

// SlidingWindow is an in-process Limiter keeping event timestamps per key.
// Counters are process-local: in a multi-instance deployment each instance
// has its own budget, which under-counts relative to a precise global limit.
type SlidingWindow struct {
	events map[string][]time.Time
	mu     sync.Mutex
	now    func() time.Time
}

// SlidingWindowOption configures a SlidingWindow.
type SlidingWindowOption func(*SlidingWindow)

// WithClock overrides the limiter's clock.
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		sw.now = now
	}
}

// NewSlidingWindow creates a new in-memory sliding-window limiter.
func NewSlidingWindow(opts ...SlidingWindowOption) *SlidingWindow {
	sw := &SlidingWindow{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(sw)
	}

	return sw
}

// CheckAndRecord prunes events older than the window, then either records the
// current event and allows, or denies without recording. Denied attempts do
// not consume additional budget.
func (sw *SlidingWindow) CheckAndRecord(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-window)

	kept := sw.events[key][:0]
	for _, ts := range sw.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= max {
		sw.events[key] = kept
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   kept[0].Add(window),
		}, nil
	}

	kept = append(kept, now)
	sw.events[key] = kept

	return Result{
		Allowed:   true,
		Remaining: max - len(kept),
		ResetAt:   kept[0].Add(window),
	}, nil
}

// Reset clears the recorded events for a key.
func (sw *SlidingWindow) Reset(key string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	delete(sw.events, key)
}

// PruneIdle removes keys whose newest event is older than the given window.
// Run it periodically to bound memory on long-lived processes.
func (sw *SlidingWindow) PruneIdle(window time.Duration) int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.now().Add(-window)
	removed := 0
	for key, events := range sw.events {
		if len(events) == 0 || !events[len(events)-1].After(cutoff) {
			delete(sw.events, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.events)
}
