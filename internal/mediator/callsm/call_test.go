package callsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/timer"
)

type fakeAdapter struct {
	calls            []string
	lastOutputPort   uint16
	lastOutputCallID backend.CallID
}

func (a *fakeAdapter) Call(party string, req backend.ReqID) {
	a.calls = append(a.calls, "call:"+party)
}
func (a *fakeAdapter) SetCallStatus(callID backend.CallID, status backend.CallStatus, req backend.ReqID) {
	a.calls = append(a.calls, "set-call-status:"+status.String())
}
func (a *fakeAdapter) AlterCallSetInputFile(callID backend.CallID, path string, req backend.ReqID) {
	a.calls = append(a.calls, "set-input-file:"+path)
}
func (a *fakeAdapter) AlterCallSetInputSoundcard(callID backend.CallID, req backend.ReqID) {
	a.calls = append(a.calls, "set-input-soundcard")
}
func (a *fakeAdapter) AlterCallSetOutputFile(callID backend.CallID, path string, req backend.ReqID) {
	a.calls = append(a.calls, "set-output-file:"+path)
}
func (a *fakeAdapter) AlterCallSetOutputPort(callID backend.CallID, port uint16) {
	a.calls = append(a.calls, "set-output-port")
	a.lastOutputPort = port
	a.lastOutputCallID = callID
}

type recordingSink struct {
	out []api.Outbound
}

func (s *recordingSink) Consume(o api.Outbound) { s.out = append(s.out, o) }

func (s *recordingSink) responses() []api.Response {
	var rs []api.Response
	for _, o := range s.out {
		if r, ok := o.(api.Response); ok {
			rs = append(rs, r)
		}
	}
	return rs
}

func (s *recordingSink) notifications() []api.Notification {
	var ns []api.Notification
	for _, o := range s.out {
		if n, ok := o.(api.Notification); ok {
			ns = append(ns, n)
		}
	}
	return ns
}

func newTestCall() (*Call, *fakeAdapter, *recordingSink) {
	a := &fakeAdapter{}
	s := &recordingSink{}
	c := New(a, s, timer.New(), time.Second, 0)
	return c, a, s
}

func makeReady(c *Call) {
	c.HandleBackendEvent(backend.NewConnectionStatusEvent(backend.ConnectionOnline))
	c.HandleBackendEvent(backend.NewUserStatusEvent(backend.UserOnline))
}

// S1 Successful call.
func TestScenarioSuccessfulCall(t *testing.T) {
	c, a, s := newTestCall()
	makeReady(c)
	require.Equal(t, Idle, c.State())

	c.HandleRequest(api.NewInitiateCall(1, "+4917012345"))
	require.Equal(t, WaitingInitiateCallResponse, c.State())
	require.Contains(t, a.calls, "call:004917012345")

	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusRouting))
	require.Equal(t, WaitingConnection, c.State())
	require.Equal(t, backend.CallID(100), c.CallID())

	resp := s.responses()
	require.Len(t, resp, 1)
	icr, ok := resp[0].(api.InitiateCallResponse)
	require.True(t, ok)
	require.Equal(t, backend.ReqID(1), icr.ReqID())
	require.Equal(t, backend.CallID(100), icr.CallID)

	notifs := s.notifications()
	require.Len(t, notifs, 1)
	_, ok = notifs[0].(api.Dialing)
	require.True(t, ok)

	c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusRinging))
	c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusInProgress))
	require.Equal(t, Connected, c.State())

	notifs = s.notifications()
	require.Len(t, notifs, 3)
	_, ok = notifs[1].(api.Ringing)
	require.True(t, ok)
	_, ok = notifs[2].(api.Connected)
	require.True(t, ok)

	c.HandleRequest(api.NewDrop(2, 100))
	require.Equal(t, CanceledInC, c.State())

	c.HandleBackendEvent(backend.NewCallStatusEvent(2, 100, backend.CallStatusFinished))
	require.Equal(t, Idle, c.State())

	resp = s.responses()
	require.Len(t, resp, 2)
	dr, ok := resp[1].(api.DropResponse)
	require.True(t, ok)
	require.Equal(t, backend.ReqID(2), dr.ReqID())
}

// S2 Busy reject.
func TestScenarioBusyReject(t *testing.T) {
	c, _, s := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "+4917012345"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusRouting))
	require.Equal(t, WaitingConnection, c.State())

	c.HandleRequest(api.NewInitiateCall(3, "alice"))

	resp := s.responses()
	require.Len(t, resp, 2)
	rej, ok := resp[1].(api.RejectResponse)
	require.True(t, ok)
	require.Equal(t, backend.ReqID(3), rej.ReqID())
	require.Equal(t, "cannot process in state WAITING_CONNECTION", rej.Descr)
}

// S6 Connection lost.
func TestScenarioConnectionLost(t *testing.T) {
	c, _, s := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "+4917012345"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusRouting))
	c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusInProgress))
	require.Equal(t, Connected, c.State())

	c.HandleBackendEvent(backend.NewCallPSTNStatusEvent(100, 7, "No common codec"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusFinished))
	require.Equal(t, Idle, c.State())

	notifs := s.notifications()
	last := notifs[len(notifs)-1]
	cl, ok := last.(api.ConnectionLost)
	require.True(t, ok)
	require.Equal(t, "PSTN: 7, No common codec", cl.Descr)
}

// S7 Invalid party.
func TestScenarioInvalidParty(t *testing.T) {
	c, a, s := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(9, "12345"))

	require.Empty(t, a.calls)
	resp := s.responses()
	require.Len(t, resp, 1)
	errResp, ok := resp[0].(api.ErrorResponse)
	require.True(t, ok)
	require.Equal(t, "invalid number format: 12345", errResp.Descr)
	require.Equal(t, Idle, c.State())
}

// Property 4: readiness gating.
func TestReadinessGating(t *testing.T) {
	c, _, s := newTestCall()
	require.Equal(t, Unknown, c.State())

	c.HandleRequest(api.NewInitiateCall(1, "alice"))
	resp := s.responses()
	require.Len(t, resp, 1)
	_, ok := resp[0].(api.RejectResponse)
	require.True(t, ok)

	makeReady(c)
	require.Equal(t, Idle, c.State())

	c.HandleRequest(api.NewInitiateCall(2, "alice"))
	require.Equal(t, WaitingInitiateCallResponse, c.State())
}

// Property 8: DTMF gating.
func TestDTMFGatingOutsideConnected(t *testing.T) {
	c, _, s := newTestCall()
	makeReady(c)
	c.HandleDTMFTone('5')
	require.Empty(t, s.notifications())
}

func TestDTMFDeliveredWhenConnected(t *testing.T) {
	c, _, s := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "alice"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusInProgress))
	require.Equal(t, Connected, c.State())

	c.HandleDTMFTone('5')
	notifs := s.notifications()
	require.Len(t, notifs, 2)
	tone, ok := notifs[1].(api.DtmfTone)
	require.True(t, ok)
	require.Equal(t, '5', tone.Tone)
}

// EARLYMEDIA/VM_SENT are ordinary backend traffic while a call is still
// being set up, not a programmer error; the Call SM must log and ignore
// them rather than abort.
func TestCallStatusEarlyMediaIgnoredInWaitingConnection(t *testing.T) {
	c, _, _ := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "+4917012345"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusRouting))

	require.NotPanics(t, func() {
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusEarlyMedia))
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusVMSent))
	})
	require.Equal(t, WaitingConnection, c.State())
}

// VM_RECORDING/VM_SENT/EARLYMEDIA/VM_FAILED are ordinary voicemail/media
// traffic once CONNECTED; only the six statuses the spec names as a
// programmer error should abort.
func TestCallStatusVoicemailTrafficIgnoredInConnected(t *testing.T) {
	c, _, _ := newTestCall()
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "+4917012345"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusInProgress))
	require.Equal(t, Connected, c.State())

	require.NotPanics(t, func() {
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusVMRecording))
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusVMSent))
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusEarlyMedia))
		c.HandleBackendEvent(backend.NewCallStatusEvent(0, 100, backend.CallStatusVMFailed))
	})
	require.Equal(t, Connected, c.State())
}

func TestDataPortTriggersOutputPortOnConnect(t *testing.T) {
	a := &fakeAdapter{}
	s := &recordingSink{}
	c := New(a, s, timer.New(), time.Second, 9000)
	makeReady(c)
	c.HandleRequest(api.NewInitiateCall(1, "alice"))
	c.HandleBackendEvent(backend.NewCallStatusEvent(1, 100, backend.CallStatusInProgress))

	require.Contains(t, a.calls, "set-output-port")
	require.Equal(t, uint16(9000), a.lastOutputPort)
	require.Equal(t, backend.CallID(100), a.lastOutputCallID)
}
