package runtime

import (
	"testing"
	"time"
)

func TestFakeClock_AdvanceFiresDueTimers(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rt := New(clock, 16)

	var fired bool
	rt.AfterFunc(5*time.Second, func() { fired = true })

	clock.Advance(3 * time.Second)
	rt.RunPending()
	if fired {
		t.Fatal("timer fired before its deadline")
	}

	clock.Advance(2 * time.Second)
	rt.RunPending()
	if !fired {
		t.Fatal("expected timer to fire once its deadline elapsed")
	}
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rt := New(clock, 16)

	var order []int
	rt.AfterFunc(10*time.Second, func() { order = append(order, 2) })
	rt.AfterFunc(5*time.Second, func() { order = append(order, 1) })
	rt.AfterFunc(15*time.Second, func() { order = append(order, 3) })

	clock.Advance(20 * time.Second)
	rt.RunPending()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected firing order [1 2 3], got %v", order)
	}
}

func TestTimer_StopPreventsFiring(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rt := New(clock, 16)

	var fired bool
	timer := rt.AfterFunc(5*time.Second, func() { fired = true })
	timer.Stop()

	clock.Advance(10 * time.Second)
	rt.RunPending()
	if fired {
		t.Fatal("expected Stop to prevent the timer from firing")
	}
}

func TestRunPending_DoesNotBlockWithNoWork(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rt := New(clock, 16)
	rt.RunPending()
}

func TestPost_RunsOnRunPending(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rt := New(clock, 16)

	var ran bool
	rt.Post(func() { ran = true })
	rt.RunPending()
	if !ran {
		t.Fatal("expected posted callback to run via RunPending")
	}
}
