// Package facade exposes the mediator's public, thread-safe surface: client
// requests and backend/DTMF callbacks arrive from arbitrary goroutines here
// and are wrapped into Worker events. Per the concurrency model, the Facade
// is the only component that takes a lock; everything past the Worker queue
// is single-threaded and lock-free.
package facade

import (
	"sync"
	"time"

	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/callsm"
	"github.com/sebas/callmediator/internal/mediator/timer"
	"github.com/sebas/callmediator/internal/mediator/worker"
)

// Facade is the mediator's entry point. Zero value is not ready for use;
// construct with New.
type Facade struct {
	mu       sync.RWMutex
	inited   bool
	sinkSet  bool
	call     *callsm.Call
	w        *worker.Worker
	sink     api.Sink
}

// Config configures a Facade's init-time knobs (the same fields the
// application's config layer loads).
type Config struct {
	QueueCapacity     int
	PlayStartTimeout  time.Duration
	DataPort          uint16
}

// New constructs a Facade bound to the given backend adapter. The Facade is
// not processing events until Init is called.
func New(adapter backend.Adapter, cfg Config) *Facade {
	f := &Facade{}
	sink := &lazySink{}
	f.sink = sink
	sched := worker.NewQueueingScheduler(timer.New())
	call := callsm.New(adapter, sink, sched, cfg.PlayStartTimeout, cfg.DataPort)
	f.call = call
	f.w = worker.New(call, cfg.QueueCapacity)
	sched.Bind(f.w.Submit)
	return f
}

// lazySink forwards Consume calls to the caller-supplied callback, which can
// be registered after New. Outbound events consumed before a callback is
// registered are dropped, not buffered.
type lazySink struct {
	mu       sync.Mutex
	delegate api.Sink
}

func (s *lazySink) Consume(o api.Outbound) {
	s.mu.Lock()
	d := s.delegate
	s.mu.Unlock()
	if d != nil {
		d.Consume(o)
	}
}

func (s *lazySink) setDelegate(d api.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

// Init starts the Worker's dispatcher goroutine. Calling Init twice is a
// programmer error.
func (f *Facade) Init() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inited {
		panic("facade: Init called twice")
	}
	f.inited = true
	f.w.Start()
}

// IsInited reports whether Init has been called.
func (f *Facade) IsInited() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inited
}

// RegisterCallback installs the client's outbound sink. One-shot: calling it
// twice is a programmer error, matching the single-callback contract the
// backend's own callback registration uses.
func (f *Facade) RegisterCallback(sink api.Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinkSet {
		panic("facade: RegisterCallback called twice")
	}
	f.sinkSet = true
	f.sink.(*lazySink).setDelegate(sink)
}

// Shutdown drains the queue and joins the dispatcher goroutine.
func (f *Facade) Shutdown() {
	f.w.Shutdown()
}

// SubmitRequest enqueues a client request.
func (f *Facade) SubmitRequest(r api.Request) {
	f.w.Submit(worker.NewClientRequestEvent(r))
}

// SubmitBackendEvent enqueues a backend-originated event.
func (f *Facade) SubmitBackendEvent(e backend.Event) {
	f.w.Submit(worker.NewBackendEventEvent(e))
}

// SubmitDTMFTone enqueues a detected DTMF tone. Used both by the UDP/RTP
// tap in internal/dtmf and directly by callers that already have their own
// tap.
func (f *Facade) SubmitDTMFTone(tone rune) {
	f.w.Submit(worker.NewDTMFToneEvent(tone))
}

// State returns the call state machine's current state. Safe to call from
// any goroutine; it does not go through the Worker queue, matching the
// source's is_inited/state query exemption from the single-thread rule.
func (f *Facade) State() callsm.State {
	return f.call.PublicState()
}
