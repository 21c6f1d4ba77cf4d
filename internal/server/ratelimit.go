package server

import (
	"sync"
	"time"
)

// eventLimiter is a sliding-window limit on the events one browser may send,
// with exponential backoff for clients that keep exceeding it.
type eventLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time

	stamps       []time.Time
	violations   int
	lastViolated time.Time
	backoffUntil time.Time

	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func newEventLimiter(max int, window time.Duration) *eventLimiter {
	return &eventLimiter{
		max:         max,
		window:      window,
		now:         time.Now,
		stamps:      make([]time.Time, 0, max+1),
		baseBackoff: time.Second,
		maxBackoff:  time.Minute,
	}
}

// Allow records one event and reports whether it may be processed.
func (l *eventLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.backoffUntil) {
		l.violate(now)
		return false
	}

	cutoff := now.Add(-l.window)
	keep := 0
	for keep < len(l.stamps) && !l.stamps[keep].After(cutoff) {
		keep++
	}
	l.stamps = append(l.stamps[:0], l.stamps[keep:]...)

	if len(l.stamps) >= l.max {
		l.violate(now)
		return false
	}
	if l.violations > 0 && now.Sub(l.lastViolated) > 2*l.window {
		l.violations = 0
		l.backoffUntil = time.Time{}
	}
	l.stamps = append(l.stamps, now)
	return true
}

func (l *eventLimiter) violate(now time.Time) {
	l.violations++
	l.lastViolated = now
	backoff := l.baseBackoff
	for i := 1; i < l.violations && backoff < l.maxBackoff; i++ {
		backoff *= 2
	}
	if backoff > l.maxBackoff {
		backoff = l.maxBackoff
	}
	l.backoffUntil = now.Add(backoff)
}
