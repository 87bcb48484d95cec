// Package worker imposes a total order on every event affecting mediator
// state: client requests, backend events, timer fires, and DTMF tones are
// all drained by a single dispatcher goroutine and handed to the Call state
// machine one at a time.
package worker

import (
	"sync"

	"github.com/sebas/callmediator/internal/logger"
	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
)

// Event is the closed set of things the Worker can queue. isEvent is an
// unexported marker so only this package's types satisfy the interface.
type Event interface {
	isEvent()
}

type eventBase struct{}

func (eventBase) isEvent() {}

// ClientRequestEvent wraps a client-issued request.
type ClientRequestEvent struct {
	eventBase
	Request api.Request
}

func NewClientRequestEvent(r api.Request) ClientRequestEvent {
	return ClientRequestEvent{Request: r}
}

// BackendEventEvent wraps a backend-originated event.
type BackendEventEvent struct {
	eventBase
	Event backend.Event
}

func NewBackendEventEvent(e backend.Event) BackendEventEvent {
	return BackendEventEvent{Event: e}
}

// TimerFireEvent wraps a scheduler callback so it runs on the dispatcher
// goroutine. QueueingScheduler submits one each time a scheduled timer
// fires.
type TimerFireEvent struct {
	eventBase
	Fire func()
}

func NewTimerFireEvent(fn func()) TimerFireEvent {
	return TimerFireEvent{Fire: fn}
}

// DTMFToneEvent wraps a single detected tone.
type DTMFToneEvent struct {
	eventBase
	Tone rune
}

func NewDTMFToneEvent(tone rune) DTMFToneEvent {
	return DTMFToneEvent{Tone: tone}
}

// Dispatcher is implemented by the Call state machine; the Worker fans
// events out to it by concrete type.
type Dispatcher interface {
	HandleRequest(api.Request)
	HandleBackendEvent(backend.Event)
	HandleDTMFTone(tone rune)
}

// Worker drains a bounded FIFO of events on a single dispatcher goroutine.
type Worker struct {
	queue      chan Event
	dispatcher Dispatcher
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
}

// New constructs a Worker with the given queue capacity. Start must be
// called to begin dispatching.
func New(dispatcher Dispatcher, capacity int) *Worker {
	if capacity <= 0 {
		capacity = 256
	}
	return &Worker{
		queue:      make(chan Event, capacity),
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.queue:
			if !ok {
				return
			}
			w.dispatch(ev)
		case <-w.done:
			w.drain()
			return
		}
	}
}

// drain processes any events already queued before the worker exits, so a
// Shutdown during a burst of submissions does not silently lose events that
// were already accepted.
func (w *Worker) drain() {
	for {
		select {
		case ev, ok := <-w.queue:
			if !ok {
				return
			}
			w.dispatch(ev)
		default:
			return
		}
	}
}

func (w *Worker) dispatch(ev Event) {
	switch e := ev.(type) {
	case ClientRequestEvent:
		w.dispatcher.HandleRequest(e.Request)
	case BackendEventEvent:
		w.dispatcher.HandleBackendEvent(e.Event)
	case TimerFireEvent:
		e.Fire()
	case DTMFToneEvent:
		w.dispatcher.HandleDTMFTone(e.Tone)
	default:
		logger.Error("worker: unrecognized event type, dropping", "type", ev)
	}
}

// Submit enqueues ev for processing. It is safe to call from any goroutine
// and only blocks if the bounded queue is full, which is the backpressure
// the queue is meant to apply.
func (w *Worker) Submit(ev Event) {
	select {
	case w.queue <- ev:
	case <-w.done:
		logger.Warn("worker: submit after shutdown, dropping event")
	}
}

// Shutdown signals the dispatcher to drain and exit, then waits for it.
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}
