package ratelimiter

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Limiter allows one action per interval on an injectable clock.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	last     time.Time
}

// New creates a limiter. A nil clock means the wall clock.
func New(interval time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Limiter{
		clock:    clk,
		interval: interval,
	}
}

// Allow reports whether an action may run now. When it may, now is recorded
// as the last allowed time; otherwise the remaining wait is returned.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.last.IsZero() {
		l.last = now
		return true, 0
	}

	elapsed := now.Sub(l.last)
	if elapsed >= l.interval {
		l.last = now
		return true, 0
	}
	return false, l.interval - elapsed
}

// Mark records an action that ran regardless of the limit, such as a
// forced final redraw.
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.last = l.clock.Now()
	l.mu.Unlock()
}

// Reset allows the next action immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}

// Interval returns the configured interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
