// Package clock abstracts the time operations the signaling hub depends
// on. Production code uses Real(); tests use Fake() and advance time
// explicitly so ring timeouts and sweeps fire deterministically.
package clock

import "time"

// Clock is the subset of the time package used by the hub.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f after d elapses. The returned Timer can cancel
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a cancellable scheduled callback.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. It reports whether the call
// stopped the timer; false means it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks. C has capacity 1; ticks are dropped
// if the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
