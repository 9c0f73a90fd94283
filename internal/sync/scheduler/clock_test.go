// Package scheduler tests for the clock abstraction.
package scheduler

import (
	"testing"
	"time"
)

// TestManual_advanceFiresDueTimers verifies timers fire when their
// deadline is crossed and not before.
func TestManual_advanceFiresDueTimers(t *testing.T) {
	clock := NewManual(time.Unix(1700000000, 0))
	timer := clock.NewTimer(5 * time.Second)

	clock.Advance(4 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	clock.Advance(1 * time.Second)
	select {
	case fired := <-timer.C():
		want := time.Unix(1700000005, 0)
		if !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

// TestManual_now verifies Advance moves the reported time.
func TestManual_now(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := NewManual(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	if !clock.Now().Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", clock.Now())
	}
}

// TestManual_stopPreventsFire verifies a stopped timer never fires.
func TestManual_stopPreventsFire(t *testing.T) {
	clock := NewManual(time.Unix(1700000000, 0))
	timer := clock.NewTimer(time.Second)

	if !timer.Stop() {
		t.Error("Stop() = false on an armed timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}

	clock.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}
}

// TestManual_zeroDurationFiresImmediately verifies non-positive delays.
func TestManual_zeroDurationFiresImmediately(t *testing.T) {
	clock := NewManual(time.Unix(1700000000, 0))
	timer := clock.NewTimer(0)

	select {
	case <-timer.C():
	default:
		t.Error("zero-duration timer did not fire immediately")
	}
}

// TestManual_multipleTimers verifies independent deadlines.
func TestManual_multipleTimers(t *testing.T) {
	clock := NewManual(time.Unix(1700000000, 0))
	short := clock.NewTimer(time.Second)
	long := clock.NewTimer(time.Minute)

	clock.Advance(time.Second)
	select {
	case <-short.C():
	default:
		t.Error("short timer did not fire")
	}
	select {
	case <-long.C():
		t.Error("long timer fired early")
	default:
	}

	if clock.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", clock.Pending())
	}
}

// TestSystem_timerFires verifies the wall-clock timer end to end.
func TestSystem_timerFires(t *testing.T) {
	clock := System()
	timer := clock.NewTimer(5 * time.Millisecond)

	select {
	case <-timer.C():
	case <-time.After(2 * time.Second):
		t.Fatal("system timer did not fire")
	}
}
