package worker

import (
	"sync"
	"time"

	"github.com/sebas/callmediator/internal/logger"
	"github.com/sebas/callmediator/internal/mediator/timer"
)

// QueueingScheduler wraps a timer.Scheduler so a fired callback is
// redelivered through the Worker's queue instead of running on the
// scheduler's own goroutine. The Player state machine mutates its own
// fields from its watchdog callback; routing the fire through the queue
// keeps that mutation on the single dispatcher goroutine like every other
// state transition, rather than racing it against the Worker thread.
type QueueingScheduler struct {
	inner timer.Scheduler

	mu     sync.Mutex
	submit func(Event)
}

// NewQueueingScheduler constructs a QueueingScheduler over inner. Bind must
// be called with the owning Worker's Submit method before any scheduled
// callback can fire; the scheduler is built before the Worker exists (the
// Worker's constructor needs the Call that owns this scheduler), so binding
// happens as a second step.
func NewQueueingScheduler(inner timer.Scheduler) *QueueingScheduler {
	return &QueueingScheduler{inner: inner}
}

// Bind attaches the Worker's Submit method. Must be called once before the
// Worker starts processing events.
func (q *QueueingScheduler) Bind(submit func(Event)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submit = submit
}

// Schedule arranges for fn to run on the Worker's dispatcher goroutine after
// d elapses.
func (q *QueueingScheduler) Schedule(d time.Duration, fn func()) timer.Handle {
	return q.inner.Schedule(d, func() {
		q.mu.Lock()
		submit := q.submit
		q.mu.Unlock()
		if submit == nil {
			logger.Error("queueing scheduler fired before bind, dropping")
			return
		}
		submit(NewTimerFireEvent(fn))
	})
}

// Cancel prevents a previously scheduled job from firing.
func (q *QueueingScheduler) Cancel(h timer.Handle) {
	q.inner.Cancel(h)
}
