package ozon

import (
	"sync"
	"time"
)

const (
	// limitLogCap bounds the ring of recorded quota-error timestamps.
	limitLogCap = 10
	// DefaultLimitWindow is how far back a recorded quota error still counts
	// as "recent". The provider hides remaining items once the daily cap is
	// spent, so an empty listing inside this window means "quota spent", not
	// "queue drained".
	DefaultLimitWindow = 5 * time.Minute
)

// limitLog remembers the timestamps of observed quota errors for one client
// instance. It is created fresh per worker invocation and never persisted.
type limitLog struct {
	mu     sync.Mutex
	stamps []time.Time
}

// record appends now, dropping the oldest entries beyond the cap.
func (l *limitLog) record(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = append(l.stamps, now)
	if len(l.stamps) > limitLogCap {
		l.stamps = l.stamps[len(l.stamps)-limitLogCap:]
	}
	return len(l.stamps)
}

// hasRecent prunes entries older than the window and reports whether any
// remain.
func (l *limitLog) hasRecent(now time.Time, window time.Duration) bool {
	cutoff := now.Add(-window)
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept
	return len(l.stamps) > 0
}
