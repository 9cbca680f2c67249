// Package runtime provides the single process-wide scheduling handle used
// throughout xorpcore instead of package-level globals (spec §9, "Global
// state"). One Runtime is constructed in main and threaded into every
// constructor that needs to read the clock or schedule a timer.
package runtime

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so tests can drive timer-based scenarios
// (expiry, deletion, key rollover, replay) deterministically without real
// sleeps.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable, idempotent-to-cancel handle returned by
// Clock.AfterFunc.
type Timer interface {
	// Stop cancels the timer. Safe to call more than once and after the
	// timer has already fired.
	Stop()
}

// Runtime bundles the clock and the single-threaded work queue every
// callback in the system is posted through, preserving the "no locks in
// the data plane" guarantee described in spec §5: callbacks from socket
// reads, timer fires, and send completions all funnel through one
// goroutine.
type Runtime struct {
	clock Clock
	work  chan func()
	done  chan struct{}
	once  sync.Once
}

// New constructs a Runtime around clock with a queue depth of backlog
// pending callbacks.
func New(clock Clock, backlog int) *Runtime {
	if backlog <= 0 {
		backlog = 256
	}
	return &Runtime{
		clock: clock,
		work:  make(chan func(), backlog),
		done:  make(chan struct{}),
	}
}

// Clock returns the runtime's clock.
func (r *Runtime) Clock() Clock { return r.clock }

// Post enqueues f to run on the event loop goroutine. Safe to call from
// any goroutine (socket readers, timer callbacks).
func (r *Runtime) Post(f func()) {
	select {
	case r.work <- f:
	case <-r.done:
	}
}

// Run drains the work queue until Stop is called. Intended to be run in
// exactly one goroutine for the lifetime of the process.
func (r *Runtime) Run() {
	for {
		select {
		case f := <-r.work:
			f()
		case <-r.done:
			return
		}
	}
}

// Stop terminates Run. Idempotent.
func (r *Runtime) Stop() {
	r.once.Do(func() { close(r.done) })
}

// RunPending executes every callback currently queued, without blocking
// for more work. Intended for tests driving a FakeClock: Advance fires
// timers by posting to the queue, and RunPending runs them synchronously
// on the test goroutine instead of requiring a live Run loop.
func (r *Runtime) RunPending() {
	for {
		select {
		case f := <-r.work:
			f()
		default:
			return
		}
	}
}

// AfterFunc schedules f to be posted to the event loop after d elapses.
// The returned Timer cancels idempotently.
func (r *Runtime) AfterFunc(d time.Duration, f func()) Timer {
	return r.clock.AfterFunc(d, func() { r.Post(f) })
}

// RealClock is the production Clock backed by time.AfterFunc.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	t := time.AfterFunc(d, f)
	return stopTimer{t}
}

type stopTimer struct{ t *time.Timer }

func (s stopTimer) Stop() { s.t.Stop() }
