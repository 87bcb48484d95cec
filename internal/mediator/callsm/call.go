// Package callsm implements the master call state machine: the single
// active call from idle through connection setup, connected, and drop. It
// owns the Player state machine and delegates all audio operations to it.
package callsm

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sebas/callmediator/internal/logger"
	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/party"
	"github.com/sebas/callmediator/internal/mediator/playersm"
	"github.com/sebas/callmediator/internal/mediator/timer"
)

// Call is the master call state machine. It is not safe for concurrent use;
// the Worker's single dispatcher goroutine is its only caller.
type Call struct {
	adapter  backend.Adapter
	sink     api.Sink
	player   *playersm.Player
	dataPort uint16

	state        State
	publicState  atomic.Int32 // mirrors state for cross-goroutine State() queries
	callID       backend.CallID
	currentReqID backend.ReqID

	connStatus backend.ConnectionStatus
	userStatus backend.UserStatus

	hasPSTN   bool
	pstnCode  int
	pstnDescr string

	hasFailure   bool
	failureCode  int
	failureDescr string
}

// New constructs a Call in its initial UNKNOWN state. playStartTimeout is
// passed through to the Player SM's watchdog; zero selects its default.
func New(adapter backend.Adapter, sink api.Sink, sched timer.Scheduler, playStartTimeout time.Duration, dataPort uint16) *Call {
	c := &Call{adapter: adapter, sink: sink, dataPort: dataPort, state: Unknown}
	c.player = playersm.New(c, sched, playStartTimeout)
	return c
}

// State returns the call's current state. Only safe to call from the
// Worker's dispatcher goroutine; cross-goroutine callers (the Facade) must
// use PublicState instead.
func (c *Call) State() State { return c.state }

// PublicState returns the call's current state for callers outside the
// Worker's dispatcher goroutine, matching the source's exemption of
// is_inited/state queries from the single-thread rule.
func (c *Call) PublicState() State { return State(c.publicState.Load()) }

// CallID returns the backend-assigned id of the active call, or 0.
func (c *Call) CallID() backend.CallID { return c.callID }

func (c *Call) setState(next State) {
	logger.Debug("call state transition", "from", c.state.String(), "to", next.String())
	c.state = next
	c.publicState.Store(int32(next))
}

func (c *Call) reject(reqID backend.ReqID, descr string) {
	c.sink.Consume(api.NewRejectResponse(reqID, descr))
}

// --- playersm.Host ---

func (c *Call) IssueAlterCallSetInputFile(callID backend.CallID, path string, req backend.ReqID) {
	c.adapter.AlterCallSetInputFile(callID, path, req)
}

func (c *Call) IssueAlterCallSetInputSoundcard(callID backend.CallID, req backend.ReqID) {
	c.adapter.AlterCallSetInputSoundcard(callID, req)
}

func (c *Call) Emit(r api.Response) {
	c.sink.Consume(r)
}

// --- client requests ---

// HandleRequest dispatches a client request to the appropriate handler.
func (c *Call) HandleRequest(req api.Request) {
	switch r := req.(type) {
	case api.InitiateCall:
		c.handleInitiateCall(r)
	case api.Drop:
		c.handleDrop(r)
	case api.PlayFile:
		c.handlePlayFile(r)
	case api.PlayFileStop:
		c.handlePlayFileStop(r)
	case api.RecordFile:
		c.handleRecordFile(r)
	default:
		panic(fmt.Sprintf("callsm: unknown request type %T", req))
	}
}

func (c *Call) handleInitiateCall(r api.InitiateCall) {
	if c.state != Idle {
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in state %s", c.state))
		return
	}

	_, transformed, err := party.Classify(r.Party)
	if err != nil {
		c.sink.Consume(api.NewErrorResponse(r.ReqID(), 0, "invalid number format: "+r.Party))
		return
	}

	c.currentReqID = r.ReqID()
	c.adapter.Call(transformed, r.ReqID())
	c.setState(WaitingInitiateCallResponse)
}

func (c *Call) handleDrop(r api.Drop) {
	switch c.state {
	case WaitingConnection:
		c.currentReqID = r.ReqID()
		c.adapter.SetCallStatus(c.callID, backend.CallStatusFinished, r.ReqID())
		c.setState(CanceledInWC)
	case Connected:
		c.currentReqID = r.ReqID()
		c.adapter.SetCallStatus(c.callID, backend.CallStatusFinished, r.ReqID())
		c.setState(CanceledInC)
	default:
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in state %s", c.state))
	}
}

func (c *Call) handlePlayFile(r api.PlayFile) {
	if c.state != Connected {
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in state %s", c.state))
		return
	}
	if c.player.State() != playersm.Idle {
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in player state %s", c.player.State()))
		return
	}
	c.player.PlayFile(r.ReqID(), r.CallID, r.Filename)
}

func (c *Call) handlePlayFileStop(r api.PlayFileStop) {
	if c.state != Connected {
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in state %s", c.state))
		return
	}
	c.player.Stop(r.ReqID(), r.CallID)
}

func (c *Call) handleRecordFile(r api.RecordFile) {
	if c.state != Connected {
		c.reject(r.ReqID(), fmt.Sprintf("cannot process in state %s", c.state))
		return
	}
	c.adapter.AlterCallSetOutputFile(r.CallID, r.Filename, r.ReqID())
	c.sink.Consume(api.NewRecordFileResponse(r.ReqID()))
}

// --- DTMF ---

// HandleDTMFTone delivers a detected tone. Tones arriving while the call is
// not CONNECTED are logged and dropped.
func (c *Call) HandleDTMFTone(tone rune) {
	if c.state != Connected {
		logger.Error("dtmf tone dropped outside CONNECTED", "state", c.state.String(), "tone", string(tone))
		return
	}
	c.sink.Consume(api.NewDtmfTone(c.callID, tone))
}

// --- backend events ---

// HandleBackendEvent dispatches a backend event by its concrete type.
func (c *Call) HandleBackendEvent(ev backend.Event) {
	switch e := ev.(type) {
	case backend.ConnectionStatusEvent:
		c.connStatus = e.Status
		c.reconcileReadiness()
	case backend.UserStatusEvent:
		c.userStatus = e.Status
		c.reconcileReadiness()
	case backend.CallStatusEvent:
		c.onCallStatus(e)
	case backend.CallPSTNStatusEvent:
		c.onPSTNStatus(e)
	case backend.CallFailureReasonEvent:
		c.onFailureReason(e)
	case backend.CallDurationEvent:
		if c.state.HasActiveCall() {
			c.sink.Consume(api.NewCallDuration(c.callID, e.Seconds))
		}
	case backend.CallVaaInputStatusEvent:
		c.routeInputStatusToPlayer(e)
	case backend.AlterCallSetInputFileRespEvent:
		c.routeAlterCallRespToPlayer(e)
	case backend.ErrorEvent:
		c.onError(e)
	default:
		logger.Debug("backend event not acted on", "kind", ev.Kind())
	}
}

func (c *Call) reconcileReadiness() {
	switch c.state {
	case Unknown:
		if backend.IsReady(c.connStatus, c.userStatus) {
			c.setState(Idle)
		}
	case Idle:
		if backend.IsUnready(c.connStatus, c.userStatus) {
			c.setState(Unknown)
		}
	default:
		logger.Info("readiness changed while call active, not acted on",
			"state", c.state.String(), "connection_status", c.connStatus.String(), "user_status", c.userStatus.String())
	}
}

func (c *Call) onPSTNStatus(e backend.CallPSTNStatusEvent) {
	if c.hasPSTN {
		panic("callsm: PSTN status already set for this call")
	}
	c.pstnCode, c.pstnDescr, c.hasPSTN = e.Code, e.Descr, true
}

func (c *Call) onFailureReason(e backend.CallFailureReasonEvent) {
	if c.hasFailure {
		panic("callsm: failure reason already set for this call")
	}
	c.failureCode, c.failureDescr, c.hasFailure = e.Code, e.Descr, true
}

func (c *Call) pstnDescrString() string {
	return fmt.Sprintf("PSTN: %d, %s", c.pstnCode, c.pstnDescr)
}

func (c *Call) routeInputStatusToPlayer(e backend.CallVaaInputStatusEvent) {
	if c.player.State() == playersm.Idle {
		logger.Warn("input-status event with no active player, dropping")
		return
	}
	if e.Active {
		c.player.OnPlayStart(e.CallID)
	} else {
		c.player.OnPlayStop(e.CallID)
	}
}

func (c *Call) routeAlterCallRespToPlayer(e backend.AlterCallSetInputFileRespEvent) {
	if c.player.State() == playersm.Idle {
		logger.Warn("set-input-file ack with no active player, dropping")
		return
	}
	if e.Err != nil {
		c.player.OnErrorResponse(e.ReqID, 0, e.Err.Error())
		return
	}
	c.player.OnAlterCallSetInputFileResponse(e.ReqID)
}

func (c *Call) onError(e backend.ErrorEvent) {
	if c.state == WaitingInitiateCallResponse && e.ReqID == c.currentReqID {
		req := c.currentReqID
		c.currentReqID = 0
		c.setState(Idle)
		c.reconcileReadiness()
		c.sink.Consume(api.NewErrorResponse(req, e.Code, e.Descr))
		return
	}
	if c.player.State() != playersm.Idle {
		c.player.OnErrorResponse(e.ReqID, e.Code, e.Descr)
		return
	}
	logger.Warn("unsolicited backend error ignored", "code", e.Code, "descr", e.Descr)
}

func (c *Call) onCallStatus(e backend.CallStatusEvent) {
	switch c.state {
	case WaitingInitiateCallResponse:
		if e.ReqID != c.currentReqID {
			logger.Info("spontaneous call-status ignored in WAITING_INITIATE_CALL_RESPONSE", "status", e.Status.String())
			return
		}
		c.callID = e.CallID
		req := c.currentReqID
		c.currentReqID = 0
		c.setState(WaitingConnection)
		c.sink.Consume(api.NewInitiateCallResponse(req, c.callID))
		c.onCallStatusWaitingConnection(e)
	case WaitingConnection:
		c.onCallStatusWaitingConnection(e)
	case Connected:
		c.onCallStatusConnected(e)
	case CanceledInC:
		c.onCallStatusCanceledInC(e)
	case CanceledInWC:
		c.onCallStatusCanceledInWC(e)
	default:
		panic("callsm: unexpected call-status event in state " + c.state.String())
	}
}

func (c *Call) onCallStatusWaitingConnection(e backend.CallStatusEvent) {
	switch e.Status {
	case backend.CallStatusRouting:
		c.sink.Consume(api.NewDialing(c.callID))
	case backend.CallStatusRinging:
		c.sink.Consume(api.NewRinging(c.callID))
	case backend.CallStatusInProgress, backend.CallStatusVMRecording:
		c.sink.Consume(api.NewConnected(c.callID))
		c.setState(Connected)
		if c.dataPort != 0 {
			c.adapter.AlterCallSetOutputPort(c.callID, c.dataPort)
		}
	case backend.CallStatusCancelled, backend.CallStatusFinished, backend.CallStatusNone,
		backend.CallStatusFailed, backend.CallStatusVMFailed:
		descr := c.preConnectFailureDescr(e.Status)
		c.sink.Consume(api.NewFailed(c.callID, api.FailReasonFailed, descr))
		c.cleanupToIdle()
	case backend.CallStatusMissed, backend.CallStatusRefused:
		c.sink.Consume(api.NewFailed(c.callID, api.FailReasonRefused, "refused"))
		c.cleanupToIdle()
	case backend.CallStatusBusy:
		c.sink.Consume(api.NewFailed(c.callID, api.FailReasonBusy, "busy"))
		c.cleanupToIdle()
	case backend.CallStatusEarlyMedia, backend.CallStatusVMSent:
		logger.Debug("call-status ignored in WAITING_CONNECTION", "status", e.Status.String())
	default:
		logger.Warn("unrecognized call-status ignored in WAITING_CONNECTION", "status", e.Status.String())
	}
}

func (c *Call) preConnectFailureDescr(status backend.CallStatus) string {
	switch status {
	case backend.CallStatusCancelled, backend.CallStatusFinished:
		if c.hasPSTN {
			return c.pstnDescrString()
		}
		return "cancelled by user"
	case backend.CallStatusNone:
		return "call ended unexpectedly"
	case backend.CallStatusVMFailed:
		if c.hasFailure {
			return c.failureDescr
		}
		return "voicemail failed"
	default:
		return "call failed"
	}
}

func (c *Call) onCallStatusConnected(e backend.CallStatusEvent) {
	switch e.Status {
	case backend.CallStatusCancelled, backend.CallStatusFinished:
		descr := "cancelled by user"
		if c.hasPSTN {
			descr = c.pstnDescrString()
		}
		c.sink.Consume(api.NewConnectionLost(c.callID, descr))
		c.cleanupToIdle()
	case backend.CallStatusNone:
		c.sink.Consume(api.NewConnectionLost(c.callID, "call ended unexpectedly"))
		c.cleanupToIdle()
	case backend.CallStatusFailed:
		c.sink.Consume(api.NewConnectionLost(c.callID, "call failed"))
		c.cleanupToIdle()
	case backend.CallStatusRouting, backend.CallStatusRinging, backend.CallStatusInProgress,
		backend.CallStatusBusy, backend.CallStatusRefused, backend.CallStatusMissed:
		panic("callsm: programmer error: " + e.Status.String() + " in CONNECTED")
	case backend.CallStatusVMRecording, backend.CallStatusVMSent, backend.CallStatusEarlyMedia, backend.CallStatusVMFailed:
		logger.Debug("call-status ignored in CONNECTED", "status", e.Status.String())
	default:
		logger.Warn("unrecognized call-status ignored in CONNECTED", "status", e.Status.String())
	}
}

func (c *Call) onCallStatusCanceledInC(e backend.CallStatusEvent) {
	switch e.Status {
	case backend.CallStatusFinished, backend.CallStatusVMSent:
		req := c.currentReqID
		c.currentReqID = 0
		c.sink.Consume(api.NewDropResponse(req))
		c.cleanupToIdle()
	default:
		panic("callsm: unexpected call-status " + e.Status.String() + " in CANCELED_IN_C")
	}
}

func (c *Call) onCallStatusCanceledInWC(e backend.CallStatusEvent) {
	switch e.Status {
	case backend.CallStatusCancelled:
		req := c.currentReqID
		c.currentReqID = 0
		c.sink.Consume(api.NewDropResponse(req))
		c.cleanupToIdle()
	case backend.CallStatusInProgress, backend.CallStatusEarlyMedia, backend.CallStatusRouting, backend.CallStatusRinging:
		logger.Debug("ignoring late transition racing drop", "status", e.Status.String())
	default:
		panic("callsm: unexpected call-status " + e.Status.String() + " in CANCELED_IN_WC")
	}
}

func (c *Call) cleanupToIdle() {
	c.callID = 0
	c.currentReqID = 0
	c.hasPSTN, c.pstnCode, c.pstnDescr = false, 0, ""
	c.hasFailure, c.failureCode, c.failureDescr = false, 0, ""
	c.player.OnLoss()
	c.setState(Idle)
	c.reconcileReadiness()
}
