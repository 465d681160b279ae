package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks run
// synchronously inside Advance, in deadline order, so a callback must
// not call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	channel  chan time.Time
	interval time.Duration
	stopped  bool
	fired    bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to run when the clock is advanced past now+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
	}
}

// NewTicker returns a Ticker that ticks every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.waiters = append(c.waiters, waiter)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls within the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		toFire := c.collectExpired(target)
		if len(toFire) == 0 {
			return
		}
		sort.SliceStable(toFire, func(i, j int) bool {
			return toFire[i].deadline.Before(toFire[j].deadline)
		})
		for _, waiter := range toFire {
			if waiter.callback != nil {
				waiter.callback()
				continue
			}
			select {
			case waiter.channel <- target:
			default:
			}
		}
	}
}

// PendingCount returns the number of timers and tickers still armed.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}

func (c *FakeClock) collectExpired(target time.Time) []*fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toFire, remaining []*fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.stopped {
			continue
		}
		if waiter.deadline.After(target) {
			remaining = append(remaining, waiter)
			continue
		}
		toFire = append(toFire, waiter)
		if waiter.interval > 0 {
			// Tickers are rescheduled; a long Advance yields one tick per
			// interval, and ticks beyond the channel buffer are dropped.
			waiter.deadline = waiter.deadline.Add(waiter.interval)
			remaining = append(remaining, waiter)
		} else {
			waiter.fired = true
		}
	}
	c.waiters = remaining
	return toFire
}
