// Package scheduler provides timing primitives for the sync engine: an
// injectable clock and a task scheduler built on it. Production code runs
// on the system clock; tests drive a manual clock deterministically.
package scheduler

import (
	"sync"
	"time"
)

// Clock abstracts time so timer-driven behavior is testable.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a single-shot timer bound to its clock.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) C() <-chan time.Time {
	return s.t.C
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}

// Manual is a clock advanced explicitly by tests. Timers fire during
// Advance once their deadline is reached; no wall time passes.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManual creates a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTimer registers a timer firing when the clock passes its deadline.
// A non-positive duration fires immediately.
func (m *Manual) NewTimer(d time.Duration) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{
		deadline: m.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		t.fire(m.now)
		return t
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward and fires every timer whose deadline
// has been reached, in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due, remaining []*manualTimer
	for _, t := range m.timers {
		if t.deadline.After(now) {
			remaining = append(remaining, t)
		} else {
			due = append(due, t)
		}
	}
	m.timers = remaining
	m.mu.Unlock()

	for i := 0; i < len(due); i++ {
		earliest := i
		for j := i + 1; j < len(due); j++ {
			if due[j].deadline.Before(due[earliest].deadline) {
				earliest = j
			}
		}
		due[i], due[earliest] = due[earliest], due[i]
		due[i].fire(now)
	}
}

// Pending returns the number of armed timers, for test assertions.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type manualTimer struct {
	mu       sync.Mutex
	deadline time.Time
	ch       chan time.Time
	done     bool
}

func (t *manualTimer) C() <-chan time.Time {
	return t.ch
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *manualTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.ch <- now
}
