// Package schedule abstracts timers so page components can defer work
// (debounce windows, staged passes, observation windows) without owning
// goroutines, and so tests can drive time by hand.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback and reports whether it was still pending.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Locked is a wall-clock scheduler whose callbacks run while holding mu. A
// page passes its own mutex so timer callbacks are serialised with event
// handlers.
type Locked struct {
	mu sync.Locker
}

// NewLocked returns a scheduler that serialises callbacks on mu.
func NewLocked(mu sync.Locker) *Locked {
	return &Locked{mu: mu}
}

// AfterFunc implements Scheduler.
func (l *Locked) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		f()
	})
}

// Now implements Scheduler.
func (l *Locked) Now() time.Time { return time.Now() }

// Group tracks timers created through it so they can be cancelled together
// on teardown. It is not safe for concurrent use; callers hold the page lock.
type Group struct {
	s      Scheduler
	timers map[*groupTimer]struct{}
	closed bool
}

type groupTimer struct {
	g     *Group
	inner Timer
}

func (t *groupTimer) Stop() bool {
	delete(t.g.timers, t)
	return t.inner.Stop()
}

// NewGroup wraps s.
func NewGroup(s Scheduler) *Group {
	return &Group{s: s, timers: make(map[*groupTimer]struct{})}
}

// AfterFunc schedules f unless the group has been stopped. After StopAll it
// returns a timer that never fires.
func (g *Group) AfterFunc(d time.Duration, f func()) Timer {
	if g.closed {
		return stoppedTimer{}
	}
	t := &groupTimer{g: g}
	t.inner = g.s.AfterFunc(d, func() {
		if _, live := g.timers[t]; !live {
			return
		}
		delete(g.timers, t)
		f()
	})
	g.timers[t] = struct{}{}
	return t
}

// Now implements Scheduler.
func (g *Group) Now() time.Time { return g.s.Now() }

// Pending returns the number of timers that have neither fired nor stopped.
func (g *Group) Pending() int { return len(g.timers) }

// StopAll cancels every pending timer and refuses new ones.
func (g *Group) StopAll() {
	g.closed = true
	for t := range g.timers {
		t.inner.Stop()
	}
	g.timers = make(map[*groupTimer]struct{})
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }

// Manual is a Scheduler driven by Advance. Callbacks run synchronously on the
// goroutine calling Advance, in due-time order (creation order on ties).
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	m   *Manual
	due time.Time
	seq int
	f   func()
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for i, p := range t.m.pending {
		if p == t {
			t.m.pending = append(t.m.pending[:i], t.m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// NewManual returns a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now.Add(d), seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks that have not fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d, firing every callback that becomes
// due, including ones scheduled by callbacks during the advance.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		sort.SliceStable(m.pending, func(i, j int) bool {
			if m.pending[i].due.Equal(m.pending[j].due) {
				return m.pending[i].seq < m.pending[j].seq
			}
			return m.pending[i].due.Before(m.pending[j].due)
		})
		if len(m.pending) == 0 || m.pending[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.now = next.due
		m.mu.Unlock()

		next.f()
	}
}
