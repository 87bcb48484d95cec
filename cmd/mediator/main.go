// Command mediator wires the call-control mediator's components together
// and runs until signaled to stop. It is deliberately thin: the example
// driver is not part of the specified core, only the Facade it constructs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebas/callmediator/internal/banner"
	"github.com/sebas/callmediator/internal/config"
	"github.com/sebas/callmediator/internal/dtmf"
	"github.com/sebas/callmediator/internal/logger"
	"github.com/sebas/callmediator/internal/mediator/api"
	"github.com/sebas/callmediator/internal/mediator/backend"
	"github.com/sebas/callmediator/internal/mediator/facade"
)

// stdoutBackend is a placeholder Adapter that logs every command instead of
// speaking the backend's wire protocol, which is out of scope for the core.
type stdoutBackend struct{}

func (stdoutBackend) Call(party string, req backend.ReqID) {
	logger.Info("backend command: call", "party", party, "req_id", req)
}
func (stdoutBackend) SetCallStatus(callID backend.CallID, status backend.CallStatus, req backend.ReqID) {
	logger.Info("backend command: set-call-status", "call_id", callID, "status", status.String(), "req_id", req)
}
func (stdoutBackend) AlterCallSetInputFile(callID backend.CallID, path string, req backend.ReqID) {
	logger.Info("backend command: set-input-file", "call_id", callID, "path", path, "req_id", req)
}
func (stdoutBackend) AlterCallSetInputSoundcard(callID backend.CallID, req backend.ReqID) {
	logger.Info("backend command: set-input-soundcard", "call_id", callID, "req_id", req)
}
func (stdoutBackend) AlterCallSetOutputFile(callID backend.CallID, path string, req backend.ReqID) {
	logger.Info("backend command: set-output-file", "call_id", callID, "path", path, "req_id", req)
}
func (stdoutBackend) AlterCallSetOutputPort(callID backend.CallID, port uint16) {
	logger.Info("backend command: set-output-port", "call_id", callID, "port", port)
}

func main() {
	cfg := config.Load()
	logger.InitLogger(os.Stderr)
	logger.SetLevel(cfg.LogLevel)

	banner.Print("callmediator", []banner.ConfigLine{
		{Label: "Data port", Value: fmt.Sprintf("%d", cfg.DataPort)},
		{Label: "Queue capacity", Value: fmt.Sprintf("%d", cfg.QueueCapacity)},
		{Label: "Play start timeout", Value: cfg.PlayStartTimeout.String()},
		{Label: "Log level", Value: cfg.LogLevel},
	})

	f := facade.New(stdoutBackend{}, facade.Config{
		QueueCapacity:    cfg.QueueCapacity,
		PlayStartTimeout: cfg.PlayStartTimeout,
		DataPort:         cfg.DataPort,
	})
	f.RegisterCallback(api.SinkFunc(func(o api.Outbound) {
		logger.Info("outbound", "event", fmt.Sprintf("%#v", o))
	}))
	f.Init()
	defer f.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DataPort != 0 {
		listener, err := dtmf.Listen(cfg.DataPort, f)
		if err != nil {
			logger.Error("failed to start dtmf listener", "error", err)
		} else {
			defer listener.Close()
			go listener.Run(ctx)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
}
