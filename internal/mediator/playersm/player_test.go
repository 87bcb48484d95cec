package playersm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/timer"
)

// fakeHost records the commands issued and responses emitted.
type fakeHost struct {
	inputFileCalls      []backend.ReqID
	inputSoundcardCalls []backend.ReqID
	responses           []api.Response
}

func (h *fakeHost) IssueAlterCallSetInputFile(callID backend.CallID, path string, req backend.ReqID) {
	h.inputFileCalls = append(h.inputFileCalls, req)
}

func (h *fakeHost) IssueAlterCallSetInputSoundcard(callID backend.CallID, req backend.ReqID) {
	h.inputSoundcardCalls = append(h.inputSoundcardCalls, req)
}

func (h *fakeHost) Emit(r api.Response) {
	h.responses = append(h.responses, r)
}

// fakeScheduler lets tests fire or cancel the watchdog deterministically.
type fakeScheduler struct {
	fn        func()
	canceled  bool
	scheduled bool
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) timer.Handle {
	s.fn = fn
	s.scheduled = true
	return timer.Handle("fake")
}

func (s *fakeScheduler) Cancel(h timer.Handle) {
	s.canceled = true
}

func (s *fakeScheduler) fire() {
	if s.fn != nil {
		s.fn()
	}
}

// S3 Play happy path.
func TestPlayerHappyPath(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	require.Equal(t, WaitPlayResp, p.State())
	require.Equal(t, []backend.ReqID{5}, host.inputFileCalls)

	p.OnAlterCallSetInputFileResponse(5)
	require.Equal(t, WaitPlayStart, p.State())
	require.True(t, sched.scheduled)

	p.OnPlayStart(100)
	require.Equal(t, Playing, p.State())
	require.True(t, sched.canceled)
	require.Len(t, host.responses, 1)
	require.Equal(t, backend.ReqID(5), host.responses[0].ReqID())
	require.IsType(t, api.PlayFileResponse{}, host.responses[0])
}

// S4 Play timeout.
func TestPlayerTimeout(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	p.OnAlterCallSetInputFileResponse(5)
	require.Equal(t, WaitPlayStart, p.State())

	sched.fire()
	require.Equal(t, Idle, p.State())
	require.Len(t, host.responses, 1)
	errResp, ok := host.responses[0].(api.ErrorResponse)
	require.True(t, ok)
	require.Equal(t, "play failed", errResp.Descr)
}

// S5 Stop during play.
func TestPlayerStopDuringPlay(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	p.OnAlterCallSetInputFileResponse(5)
	p.OnPlayStart(100)
	require.Equal(t, Playing, p.State())

	p.Stop(6, 100)
	require.Equal(t, CanceledInP, p.State())
	require.Equal(t, []backend.ReqID{6}, host.inputSoundcardCalls)

	p.OnPlayStop(100)
	require.Equal(t, Idle, p.State())
	require.Len(t, host.responses, 2)
	require.Equal(t, backend.ReqID(6), host.responses[1].ReqID())
	require.IsType(t, api.PlayFileStopResponse{}, host.responses[1])
}

func TestPlayerStopWhileIdleIsNoop(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.Stop(1, 100)
	require.Equal(t, Idle, p.State())
	require.Empty(t, host.responses)
}

func TestPlayerStopWhileWaitingStartCancels(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	p.OnAlterCallSetInputFileResponse(5)

	p.Stop(6, 100)
	require.Equal(t, Idle, p.State())
	require.True(t, sched.canceled)
	require.Len(t, host.responses, 1)
	require.Equal(t, backend.ReqID(6), host.responses[0].ReqID())
}

func TestPlayerNaturalStopThenImmediateStopAck(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	p.OnAlterCallSetInputFileResponse(5)
	p.OnPlayStart(100)
	p.OnPlayStop(100)
	require.Equal(t, PlayingAlreadyStopped, p.State())
	require.Len(t, host.responses, 1)

	p.Stop(7, 100)
	require.Equal(t, Idle, p.State())
	require.Len(t, host.responses, 2)
	require.Equal(t, backend.ReqID(7), host.responses[1].ReqID())
}

func TestPlayerOnLossReleasesTimerWithoutResponse(t *testing.T) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	p := New(host, sched, time.Second)

	p.PlayFile(5, 100, "a.wav")
	p.OnAlterCallSetInputFileResponse(5)
	require.Equal(t, WaitPlayStart, p.State())

	p.OnLoss()
	require.Equal(t, Idle, p.State())
	require.True(t, sched.canceled)
	require.Empty(t, host.responses)
}
