package debounce

import (
	"sync"
	"time"

	"github.com/sangkips/gstbill-desk/pkg/clock"
)

// Debouncer coalesces bursts of triggers into a single call of fn that runs
// once delay has passed without a new trigger.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// New creates a debouncer. fn runs outside the debouncer's lock.
func New(clk clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		clock: clk,
		delay: delay,
		fn:    fn,
	}
}

// Trigger arms the timer, resetting it if already armed.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a call is armed and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush runs a pending call immediately. It returns false if nothing was armed.
func (d *Debouncer) Flush() bool {
	if !d.disarm() {
		return false
	}
	d.fn()
	return true
}

// Cancel drops a pending call without running it.
func (d *Debouncer) Cancel() bool {
	return d.disarm()
}

func (d *Debouncer) disarm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race with Trigger/Cancel must not run.
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
