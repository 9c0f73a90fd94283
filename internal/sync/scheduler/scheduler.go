// Package scheduler provides background task scheduling for sync operations.
package scheduler

import (
	"sync"
	"time"

	"github.com/planhub/core/internal/logging"
)

// Scheduler runs repeating and one-shot background tasks on an injectable
// clock. All tasks stop when the scheduler stops.
type Scheduler struct {
	clock  Clock
	log    *logging.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates a Scheduler. A nil clock means the system clock; a nil
// logger means the global one.
func New(clock Clock, log *logging.Logger) *Scheduler {
	if clock == nil {
		clock = System()
	}
	if log == nil {
		log = logging.Get()
	}
	return &Scheduler{
		clock:  clock,
		log:    log.WithComponent("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Clock returns the clock tasks are scheduled on.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Handle cancels one scheduled task.
type Handle struct {
	once   sync.Once
	cancel chan struct{}
}

// Stop cancels the task. Safe to call more than once; a task already
// running completes its current invocation.
func (h *Handle) Stop() {
	h.once.Do(func() {
		close(h.cancel)
	})
}

// Every runs fn repeatedly with the given period until the handle or the
// scheduler stops. The first run happens one period after scheduling.
func (s *Scheduler) Every(period time.Duration, fn func()) *Handle {
	h := &Handle{cancel: make(chan struct{})}
	if !s.add() {
		return h
	}

	// The first timer is armed before Every returns, so a manual clock
	// advanced immediately after scheduling sees it.
	armed := make(chan struct{})
	go func() {
		defer s.wg.Done()
		timer := s.clock.NewTimer(period)
		close(armed)
		for {
			select {
			case <-timer.C():
				fn()
				timer = s.clock.NewTimer(period)
			case <-h.cancel:
				timer.Stop()
				return
			case <-s.stopCh:
				timer.Stop()
				return
			}
		}
	}()
	<-armed
	return h
}

// After runs fn once after the delay unless cancelled first.
func (s *Scheduler) After(delay time.Duration, fn func()) *Handle {
	h := &Handle{cancel: make(chan struct{})}
	if !s.add() {
		return h
	}

	// As in Every, the timer is armed before After returns.
	armed := make(chan struct{})
	go func() {
		defer s.wg.Done()
		timer := s.clock.NewTimer(delay)
		close(armed)
		select {
		case <-timer.C():
			fn()
		case <-h.cancel:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
		}
	}()
	<-armed
	return h
}

// Stop cancels every task and waits for their goroutines to finish.
// Tasks scheduled after Stop never run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.log.Debug("scheduler stopped")
}

// add registers a task goroutine, refusing when already stopped.
func (s *Scheduler) add() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}
