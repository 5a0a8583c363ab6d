package refresh

import (
	"sync"
	"time"
)

// fakeClock is a manually advanced Clock. Tickers drop ticks the way
// time.Ticker does when the reader falls behind.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock    *fakeClock
	ch       chan time.Time
	deadline time.Time
	period   time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	return fakeTicker{c.add(d, d)}
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	return c.add(d, 0)
}

func (c *fakeClock) add(d, period time.Duration) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &fakeWaiter{clock: c, ch: make(chan time.Time, 1), deadline: c.now.Add(d), period: period}
	c.waiters = append(c.waiters, w)
	return w
}

// Advance moves time forward and fires every ticker or timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)

	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.now) {
			kept = append(kept, w)
			continue
		}
		select {
		case w.ch <- c.now:
		default:
		}
		if w.period > 0 {
			for !w.deadline.After(c.now) {
				w.deadline = w.deadline.Add(w.period)
			}
			kept = append(kept, w)
		}
	}
	c.waiters = kept
}

// Waiters returns the number of live tickers and pending timers.
func (c *fakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *fakeClock) remove(w *fakeWaiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.waiters {
		if other == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (w *fakeWaiter) C() <-chan time.Time { return w.ch }
func (w *fakeWaiter) Stop() bool          { return w.clock.remove(w) }

type fakeTicker struct {
	w *fakeWaiter
}

func (t fakeTicker) C() <-chan time.Time { return t.w.ch }
func (t fakeTicker) Stop()               { t.w.clock.remove(t.w) }
