package runtime

import (
	"container/heap"
	"sync"
	"time"
)

// FakeClock is a manually-advanced Clock for deterministic tests of the
// timer-driven scenarios in spec §8 (expiry/deletion, key rollover,
// triggered-update jitter).
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	timers fakeTimerHeap
	seq   int
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{at: c.now.Add(d), f: f, seq: c.seq, clock: c}
	heap.Push(&c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing (in order) every timer
// whose deadline is now due. Fired callbacks run synchronously on the
// calling goroutine, in deadline order, ties broken by schedule order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.timers.Len() == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		t := heap.Pop(&c.timers).(*fakeTimer)
		c.now = t.at
		cancelled := t.cancelled
		c.mu.Unlock()

		if !cancelled {
			t.f()
		}
	}
}

type fakeTimer struct {
	at        time.Time
	f         func()
	seq       int
	cancelled bool
	clock     *FakeClock
}

func (t *fakeTimer) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.cancelled = true
}

type fakeTimerHeap []*fakeTimer

func (h fakeTimerHeap) Len() int { return len(h) }
func (h fakeTimerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h fakeTimerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *fakeTimerHeap) Push(x any)   { *h = append(*h, x.(*fakeTimer)) }
func (h *fakeTimerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
