package ratelimiter

import (
	"sync"
	"time"
)

// Limiter lets one action through per interval.
// The watcher uses it to keep per-poll progress lines out of the log;
// it is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	suppressed  int
	now         func() time.Time
}

// New creates a new rate limiter with the specified interval.
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a limiter reading time from now
func NewWithClock(interval time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		interval: interval,
		now:      now,
	}
}

// allowLocked records now as the last allowed time when the interval has passed
func (l *Limiter) allowLocked() bool {
	now := l.now()
	if l.lastAllowed.IsZero() || now.Sub(l.lastAllowed) >= l.interval {
		l.lastAllowed = now
		return true
	}
	return false
}

// Do runs fn when the limiter allows it, passing the number of calls that
// were suppressed since the last run. Reports whether fn ran.
func (l *Limiter) Do(fn func(suppressed int)) bool {
	l.mu.Lock()
	if !l.allowLocked() {
		l.suppressed++
		l.mu.Unlock()
		return false
	}
	suppressed := l.suppressed
	l.suppressed = 0
	l.mu.Unlock()

	fn(suppressed)
	return true
}
