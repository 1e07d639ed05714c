// Package debounce coalesces rapid calls into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays an action until calls have stopped arriving for a settling period.
// The action always receives the argument of the most recent call.
//
// At most one timer is pending per Debouncer. A timer that fires after it was
// superseded by a newer Call or by Cancel does not run the action.
type Debouncer[T any] struct {
	delay  time.Duration
	action func(T)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// New creates a Debouncer that runs action after delay of inactivity.
func New[T any](delay time.Duration, action func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:  delay,
		action: action,
	}
}

// Call schedules the action with v, replacing any pending invocation.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen, v)
	})
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.action(v)
}

// Cancel drops the pending invocation, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Delay returns the settling period.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}
