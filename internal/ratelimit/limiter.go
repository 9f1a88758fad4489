// Package ratelimit bounds the outbound request rate of the marketplace
// client, per API credential. Every store shares one process-wide Limiter;
// windows are keyed by Client-Id so concurrently running jobs for the same
// store draw from the same budget while unrelated stores never contend.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxRequests is the per-window request budget.
	DefaultMaxRequests = 50
	// DefaultWindow is the budget window.
	DefaultWindow = 1000 * time.Millisecond
)

// clientWindow tracks the admission timestamps of one Client-Id. Each window
// carries its own lock so stalls on one credential never block another.
type clientWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter admits outbound requests under a max-requests-per-window budget,
// independently per clientID. Acquire never refuses permanently; it either
// admits immediately or sleeps until the window frees up.
type Limiter struct {
	maxRequests int
	window      time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	windows map[string]*clientWindow

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleepFunc overrides the sleep used when the budget is exhausted.
// Intended for tests to avoid real delays.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// New creates a Limiter. Non-positive maxRequests or window fall back to the
// defaults.
func New(maxRequests int, window time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
		windows:     make(map[string]*clientWindow),
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until one more request may be issued for clientID, then
// returns nil. The only error path is caller cancellation via ctx.
//
// When the budget is exhausted the caller sleeps until the window elapses
// measured from the oldest admitted request, then the entire window for that
// clientID is cleared before admission. The full reset deliberately
// under-counts throughput after a stall; it is kept as-is rather than evicting
// only stale entries, because downstream pacing depends on the coarser
// behavior.
func (l *Limiter) Acquire(ctx context.Context, clientID string) error {
	w := l.windowFor(clientID)

	w.mu.Lock()
	now := l.now()
	w.stamps = pruneOlder(w.stamps, now.Add(-l.window))

	if len(w.stamps) < l.maxRequests {
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return nil
	}

	wait := l.window - now.Sub(w.stamps[0])
	w.mu.Unlock()

	l.logger.Debug("rate limit reached, sleeping",
		slog.String("client_id", clientID),
		slog.Duration("wait", wait),
	)

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.stamps = w.stamps[:0]
	w.stamps = append(w.stamps, l.now())
	w.mu.Unlock()
	return nil
}

// windowFor returns the window for clientID, creating it on first use.
func (l *Limiter) windowFor(clientID string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[clientID]
	if !ok {
		w = &clientWindow{}
		l.windows[clientID] = w
	}
	return w
}

// pruneOlder drops timestamps at or before cutoff, preserving order.
func pruneOlder(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
