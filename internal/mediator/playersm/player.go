// Package playersm implements the audio-playback state machine: issue
// command, await backend ack, await "input-active" notification (with a
// watchdog timeout), playing, stop. Grounded on the original PlayerSM
// design: a command/ack/start/stop protocol correlated by req_id, owned and
// driven by the Call state machine.
package playersm

import (
	"time"

	"github.com/sebas/callmediator/internal/logger"
	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/timer"
)

const defaultPlayStartTimeout = 2 * time.Second

// Host is the set of services the Player needs from its owner: issuing
// backend commands and delivering client-facing responses. The Call state
// machine implements this.
type Host interface {
	IssueAlterCallSetInputFile(callID backend.CallID, path string, req backend.ReqID)
	IssueAlterCallSetInputSoundcard(callID backend.CallID, req backend.ReqID)
	Emit(api.Response)
}

// Player is the audio-playback state machine. It is not safe for concurrent
// use; all methods are expected to run on the Worker's dispatcher goroutine.
type Player struct {
	host      Host
	sched     timer.Scheduler
	timeout   time.Duration
	state     State
	reqID     backend.ReqID
	callID    backend.CallID
	timerH    timer.Handle
	hasTimer  bool
}

// New constructs a Player. timeout of zero defaults to the spec's ~2s
// watchdog.
func New(host Host, sched timer.Scheduler, timeout time.Duration) *Player {
	if timeout <= 0 {
		timeout = defaultPlayStartTimeout
	}
	return &Player{host: host, sched: sched, timeout: timeout, state: Idle}
}

// State returns the player's current state.
func (p *Player) State() State { return p.state }

func (p *Player) setState(next State) {
	logger.Debug("player state transition", "from", p.state.String(), "to", next.String())
	p.state = next
}

func (p *Player) cancelTimer() {
	if p.hasTimer {
		p.sched.Cancel(p.timerH)
		p.hasTimer = false
	}
}

// PlayFile starts playback of filename into callID. Must only be called
// while the Player is Idle; the Call SM enforces that by only delegating
// PlayFile requests while CONNECTED and the Player Idle.
func (p *Player) PlayFile(req backend.ReqID, callID backend.CallID, filename string) {
	if p.state != Idle {
		panic("playersm: PlayFile called outside IDLE")
	}
	p.reqID = req
	p.callID = callID
	p.host.IssueAlterCallSetInputFile(callID, filename, req)
	p.setState(WaitPlayResp)
}

// Stop requests playback stop. req is the req_id of the Stop request
// itself (used for the eventual ack in the PLAYING path).
func (p *Player) Stop(req backend.ReqID, callID backend.CallID) {
	switch p.state {
	case Idle:
		logger.Warn("playersm: stop requested while idle, ignoring")
	case WaitPlayStart:
		p.cancelTimer()
		p.reqID = 0
		p.setState(Idle)
		p.host.Emit(api.NewPlayFileStopResponse(req))
	case PlayingAlreadyStopped:
		p.reqID = 0
		p.setState(Idle)
		p.host.Emit(api.NewPlayFileStopResponse(req))
	case Playing:
		p.reqID = req
		p.host.IssueAlterCallSetInputSoundcard(callID, req)
		p.setState(CanceledInP)
	default:
		panic("playersm: Stop called in state " + p.state.String())
	}
}

// OnLoss is called by the Call SM when it returns to IDLE. It releases any
// pending timer without emitting a response; the call-terminal event
// already informed the client.
func (p *Player) OnLoss() {
	if p.state == WaitPlayStart {
		p.cancelTimer()
	}
	p.reqID = 0
	p.setState(Idle)
}

// OnAlterCallSetInputFileResponse handles the backend's ack of the
// set-input-file command issued by PlayFile.
func (p *Player) OnAlterCallSetInputFileResponse(reqID backend.ReqID) {
	if p.state != WaitPlayResp {
		panic("playersm: unexpected set-input-file ack in state " + p.state.String())
	}
	if reqID != p.reqID {
		logger.Warn("playersm: set-input-file ack req_id mismatch", "got", reqID, "want", p.reqID)
		return
	}
	p.timerH = p.sched.Schedule(p.timeout, p.onPlayStartTimeout)
	p.hasTimer = true
	p.setState(WaitPlayStart)
}

// OnErrorResponse handles a backend error answering the set-input-file
// command while WAIT_PLAY_RESP.
func (p *Player) OnErrorResponse(reqID backend.ReqID, code int, descr string) {
	if p.state != WaitPlayResp {
		panic("playersm: unexpected error response in state " + p.state.String())
	}
	req := p.reqID
	p.reqID = 0
	p.setState(Idle)
	p.host.Emit(api.NewErrorResponse(req, code, descr))
}

// onPlayStartTimeout fires when the backend never reported playback start
// within the watchdog window.
func (p *Player) onPlayStartTimeout() {
	p.hasTimer = false
	if p.state != WaitPlayStart {
		return
	}
	req := p.reqID
	p.reqID = 0
	p.setState(Idle)
	p.host.Emit(api.NewErrorResponse(req, 0, "play failed"))
}

// OnPlayStart handles the backend's "input-active" notification
// (input-status(1)): playback actually started.
func (p *Player) OnPlayStart(callID backend.CallID) {
	if p.state != WaitPlayStart {
		panic("playersm: unexpected play-start in state " + p.state.String())
	}
	p.cancelTimer()
	req := p.reqID
	p.reqID = 0
	p.setState(Playing)
	p.host.Emit(api.NewPlayFileResponse(req))
}

// OnPlayStop handles the backend's input-status(0) notification: the track
// finished naturally (PLAYING) or the rerouted stop completed (CANCELED_IN_P).
func (p *Player) OnPlayStop(callID backend.CallID) {
	switch p.state {
	case Playing:
		p.setState(PlayingAlreadyStopped)
	case CanceledInP:
		req := p.reqID
		p.reqID = 0
		p.setState(Idle)
		p.host.Emit(api.NewPlayFileStopResponse(req))
	default:
		panic("playersm: unexpected play-stop in state " + p.state.String())
	}
}

// OnPlayFailed handles a backend play-failed notification while waiting for
// playback to start.
func (p *Player) OnPlayFailed(reqID backend.ReqID) {
	if p.state != WaitPlayStart {
		panic("playersm: unexpected play-failed in state " + p.state.String())
	}
	p.cancelTimer()
	req := p.reqID
	p.reqID = 0
	p.setState(Idle)
	p.host.Emit(api.NewErrorResponse(req, 0, "play failed"))
}
