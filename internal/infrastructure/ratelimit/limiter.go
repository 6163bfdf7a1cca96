// Package ratelimit enforces the remote provider's call budget. The
// provider counts calls over a rolling window, so the budget authority here
// is a sliding-window limiter over actual send timestamps; a token bucket
// in front of it smooths bursts so queued work drains evenly instead of in
// clumps at window edges.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// WindowLimiter admits at most maxCalls acquisitions in any rolling window.
// It records the timestamp of every successful acquisition and blocks a
// caller until the oldest recorded timestamp leaves the window.
//
// Thread Safety: Safe for concurrent use.
type WindowLimiter struct {
	maxCalls   int
	window     time.Duration
	mu         sync.Mutex
	timestamps []time.Time

	totalAcquired atomic.Int64
	totalWaitTime atomic.Int64 // in nanoseconds
}

// NewWindowLimiter creates a sliding-window limiter admitting maxCalls per
// window
func NewWindowLimiter(maxCalls int, window time.Duration) *WindowLimiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		maxCalls:   maxCalls,
		window:     window,
		timestamps: make([]time.Time, 0, maxCalls+1),
	}
}

// Acquire blocks until a slot is available in the rolling window or the
// context is cancelled. The slot's timestamp is recorded at grant time, so
// a send issued immediately after Acquire counts against the window it
// lands in.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	start := time.Now()

	for {
		if l.TryAcquire() {
			l.totalAcquired.Add(1)
			l.totalWaitTime.Add(int64(time.Since(start)))
			return nil
		}

		l.mu.Lock()
		var waitTime time.Duration
		if len(l.timestamps) > 0 {
			waitTime = time.Until(l.timestamps[0].Add(l.window))
		}
		l.mu.Unlock()
		if waitTime <= 0 {
			waitTime = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// TryAcquire attempts to take a slot without blocking
func (l *WindowLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	expired := 0
	for _, ts := range l.timestamps {
		if ts.After(windowStart) {
			break
		}
		expired++
	}
	if expired > 0 {
		l.timestamps = l.timestamps[expired:]
	}

	if len(l.timestamps) >= l.maxCalls {
		return false
	}
	l.timestamps = append(l.timestamps, now)
	return true
}

// InWindow returns how many acquisitions currently count against the window
func (l *WindowLimiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := time.Now().Add(-l.window)
	count := 0
	for _, ts := range l.timestamps {
		if ts.After(windowStart) {
			count++
		}
	}
	return count
}

// Budget combines the window limiter with a token bucket. The bucket runs
// first so granted slots are spaced out; the window limiter runs last so
// its recorded timestamps sit directly against the sends, making the
// rolling-window guarantee exact.
//
// Thread Safety: Safe for concurrent use.
type Budget struct {
	bucket *rate.Limiter
	window *WindowLimiter
}

// NewBudget creates a call budget of requestsPerMinute with the given burst
// allowance. Burst admits short clumps of queued work into the smoothing
// bucket; the per-minute ceiling is still enforced by the window.
func NewBudget(requestsPerMinute, burst int) *Budget {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &Budget{
		bucket: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		window: NewWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Acquire blocks until the budget grants a send slot or the context is
// cancelled
func (b *Budget) Acquire(ctx context.Context) error {
	if err := b.bucket.Wait(ctx); err != nil {
		return err
	}
	return b.window.Acquire(ctx)
}

// InWindow returns how many sends currently count against the rolling
// minute
func (b *Budget) InWindow() int {
	return b.window.InWindow()
}

// Stats returns usage statistics for the budget
func (b *Budget) Stats() Stats {
	acquired := b.window.totalAcquired.Load()
	totalWait := b.window.totalWaitTime.Load()

	var avgWait time.Duration
	if acquired > 0 {
		avgWait = time.Duration(totalWait / acquired)
	}
	return Stats{
		TotalAcquired: acquired,
		AvgWaitTime:   avgWait,
	}
}

// Stats contains usage statistics for a budget
type Stats struct {
	// TotalAcquired is the total number of granted slots
	TotalAcquired int64
	// AvgWaitTime is the average time spent waiting for a slot
	AvgWaitTime time.Duration
}
