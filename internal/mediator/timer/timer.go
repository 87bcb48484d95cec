// Package timer provides the scheduling contract the Player state machine
// uses to run its play-start watchdog. The mediator only consumes this
// contract; the concrete implementation here is a thin wrapper over
// time.AfterFunc good enough to drive the watchdog in-process.
package timer

import (
	"time"

	"github.com/google/uuid"
)

// Handle identifies a scheduled job so it can be canceled before it fires.
type Handle string

// Scheduler schedules and cancels delayed callbacks. The concrete
// implementation below is only ever driven from the Worker's single
// dispatcher goroutine, so it does not need its own locking; fn itself runs
// on a separate goroutine and must hand its result back through the Worker
// queue like any other event source.
type Scheduler interface {
	// Schedule arranges for fn to run after d elapses, returning a handle
	// that can be passed to Cancel. fn runs on its own goroutine.
	Schedule(d time.Duration, fn func()) Handle

	// Cancel prevents a previously scheduled job from firing. Canceling an
	// already-fired or already-canceled handle is a no-op.
	Cancel(h Handle)
}

// wallClock is a Scheduler backed by time.AfterFunc.
type wallClock struct {
	timers map[Handle]*time.Timer
}

// New returns a Scheduler backed by the real wall clock.
func New() Scheduler {
	return &wallClock{timers: make(map[Handle]*time.Timer)}
}

func (w *wallClock) Schedule(d time.Duration, fn func()) Handle {
	h := Handle(uuid.New().String())
	w.timers[h] = time.AfterFunc(d, fn)
	return h
}

func (w *wallClock) Cancel(h Handle) {
	if t, ok := w.timers[h]; ok {
		t.Stop()
		delete(w.timers, h)
	}
}
