// Package api defines the client-facing request, response, and notification
// types the Facade accepts and emits.
package api

import "github.com/sebas/callmediator/internal/mediator/backend"

// Request is the closed set of client-issued operations. Each carries the
// req_id the client chose for correlating the eventual response.
type Request interface {
	ReqID() backend.ReqID
	isRequest()
}

type reqBase struct{ reqID backend.ReqID }

func (r reqBase) ReqID() backend.ReqID { return r.reqID }
func (reqBase) isRequest()             {}

// InitiateCall asks the core to place a call to party (a phone number or
// backend handle, see the party package).
type InitiateCall struct {
	reqBase
	Party string
}

func NewInitiateCall(reqID backend.ReqID, party string) InitiateCall {
	return InitiateCall{reqBase: reqBase{reqID}, Party: party}
}

// Drop asks the core to terminate the named call.
type Drop struct {
	reqBase
	CallID backend.CallID
}

func NewDrop(reqID backend.ReqID, callID backend.CallID) Drop {
	return Drop{reqBase: reqBase{reqID}, CallID: callID}
}

// PlayFile asks the core to play filename into the named call.
type PlayFile struct {
	reqBase
	CallID   backend.CallID
	Filename string
}

func NewPlayFile(reqID backend.ReqID, callID backend.CallID, filename string) PlayFile {
	return PlayFile{reqBase: reqBase{reqID}, CallID: callID, Filename: filename}
}

// PlayFileStop asks the core to stop playback on the named call.
type PlayFileStop struct {
	reqBase
	CallID backend.CallID
}

func NewPlayFileStop(reqID backend.ReqID, callID backend.CallID) PlayFileStop {
	return PlayFileStop{reqBase: reqBase{reqID}, CallID: callID}
}

// RecordFile asks the core to record the far side of the named call to
// filename.
type RecordFile struct {
	reqBase
	CallID   backend.CallID
	Filename string
}

func NewRecordFile(reqID backend.ReqID, callID backend.CallID, filename string) RecordFile {
	return RecordFile{reqBase: reqBase{reqID}, CallID: callID, Filename: filename}
}

// Outbound is satisfied by both Response and Notification so the Facade can
// carry either through a single callback sink.
type Outbound interface {
	isOutbound()
}

// Response is the closed set of replies the core sends in answer to a
// Request, each echoing that request's req_id.
type Response interface {
	Outbound
	ReqID() backend.ReqID
	isResponse()
}

type respBase struct{ reqID backend.ReqID }

func (r respBase) ReqID() backend.ReqID { return r.reqID }
func (respBase) isOutbound()            {}
func (respBase) isResponse()            {}

type InitiateCallResponse struct {
	respBase
	CallID backend.CallID
}

func NewInitiateCallResponse(reqID backend.ReqID, callID backend.CallID) InitiateCallResponse {
	return InitiateCallResponse{respBase: respBase{reqID}, CallID: callID}
}

type DropResponse struct{ respBase }

func NewDropResponse(reqID backend.ReqID) DropResponse {
	return DropResponse{respBase{reqID}}
}

type PlayFileResponse struct{ respBase }

func NewPlayFileResponse(reqID backend.ReqID) PlayFileResponse {
	return PlayFileResponse{respBase{reqID}}
}

type PlayFileStopResponse struct{ respBase }

func NewPlayFileStopResponse(reqID backend.ReqID) PlayFileStopResponse {
	return PlayFileStopResponse{respBase{reqID}}
}

type RecordFileResponse struct{ respBase }

func NewRecordFileResponse(reqID backend.ReqID) RecordFileResponse {
	return RecordFileResponse{respBase{reqID}}
}

// ErrorResponse reports an asynchronous failure servicing an accepted
// request (backend refused, timeout, backend I/O failed).
type ErrorResponse struct {
	respBase
	Code  int
	Descr string
}

func NewErrorResponse(reqID backend.ReqID, code int, descr string) ErrorResponse {
	return ErrorResponse{respBase: respBase{reqID}, Code: code, Descr: descr}
}

// RejectResponse reports a synchronous precondition failure: busy, wrong
// state, invalid party, or a request already in flight.
type RejectResponse struct {
	respBase
	Code  int
	Descr string
}

func NewRejectResponse(reqID backend.ReqID, descr string) RejectResponse {
	return RejectResponse{respBase: respBase{reqID}, Descr: descr}
}

// FailReason classifies a pre-connection call termination.
type FailReason int

const (
	FailReasonFailed FailReason = iota
	FailReasonRefused
	FailReasonBusy
)

func (f FailReason) String() string {
	switch f {
	case FailReasonRefused:
		return "REFUSED"
	case FailReasonBusy:
		return "BUSY"
	default:
		return "FAILED"
	}
}

// Notification is the closed set of unsolicited, call_id-bearing events the
// core emits outside of request/response correlation.
type Notification interface {
	Outbound
	CallID() backend.CallID
	isNotification()
}

type notifBase struct{ callID backend.CallID }

func (n notifBase) CallID() backend.CallID { return n.callID }
func (notifBase) isOutbound()              {}
func (notifBase) isNotification()          {}

type Dialing struct{ notifBase }

func NewDialing(callID backend.CallID) Dialing { return Dialing{notifBase{callID}} }

type Ringing struct{ notifBase }

func NewRinging(callID backend.CallID) Ringing { return Ringing{notifBase{callID}} }

type Connected struct{ notifBase }

func NewConnected(callID backend.CallID) Connected { return Connected{notifBase{callID}} }

type CallDuration struct {
	notifBase
	Seconds uint32
}

func NewCallDuration(callID backend.CallID, seconds uint32) CallDuration {
	return CallDuration{notifBase: notifBase{callID}, Seconds: seconds}
}

// DtmfTone reports a single detected tone: '0'-'9', 'A'-'D', '*', '#'.
type DtmfTone struct {
	notifBase
	Tone rune
}

func NewDtmfTone(callID backend.CallID, tone rune) DtmfTone {
	return DtmfTone{notifBase: notifBase{callID}, Tone: tone}
}

// Failed reports a call that never reached CONNECTED.
type Failed struct {
	notifBase
	Reason FailReason
	Descr  string
}

func NewFailed(callID backend.CallID, reason FailReason, descr string) Failed {
	return Failed{notifBase: notifBase{callID}, Reason: reason, Descr: descr}
}

// ConnectionLost reports a call that was CONNECTED and dropped without a
// client-issued Drop.
type ConnectionLost struct {
	notifBase
	Descr string
}

func NewConnectionLost(callID backend.CallID, descr string) ConnectionLost {
	return ConnectionLost{notifBase: notifBase{callID}, Descr: descr}
}

// Sink is the client-supplied callback boundary; the Facade delivers every
// Response and Notification through it.
type Sink interface {
	Consume(Outbound)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Outbound)

func (f SinkFunc) Consume(o Outbound) { f(o) }
