package dtmf

import (
	"context"
	"net"

	"github.com/pion/rtp"

	"github.com/sebas/callmediator/internal/logger"
)

// ToneSink is the Worker-facing boundary a Listener feeds detected tones
// into. *facade.Facade satisfies this via SubmitDTMFTone.
type ToneSink interface {
	SubmitDTMFTone(tone rune)
}

// Listener taps a local UDP port the backend has been told (via
// alter_call_set_output_port) to redirect a call's audio to, parses
// incoming packets as RTP, and emits one tone per telephone event, on the
// first packet of that event with the end-of-event bit set. Repeated end
// packets of an event already reported emit nothing.
type Listener struct {
	conn        *net.UDPConn
	sink        ToneSink
	payloadType uint8

	lastEvent    uint8
	lastEventSet bool
	reported     bool
}

// Listen opens a UDP socket on port and returns a Listener ready to be run.
// port == 0 means "no redirection configured"; callers should not call
// Listen in that case.
func Listen(port uint16, sink ToneSink) (*Listener, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn, sink: sink, payloadType: PayloadType}, nil
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads packets until ctx is canceled or the socket is closed.
func (l *Listener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, 1500)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("dtmf: udp read failed", "error", err)
			return
		}
		l.handlePacket(buf[:n])
	}
}

func (l *Listener) handlePacket(raw []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		logger.Debug("dtmf: dropping unparsable rtp packet", "error", err)
		return
	}
	if pkt.PayloadType != l.payloadType {
		return
	}

	te, err := DecodeTelephoneEvent(pkt.Payload)
	if err != nil {
		logger.Debug("dtmf: dropping malformed telephone-event payload", "error", err)
		return
	}

	if te.EndOfEvent && l.lastEventSet && te.Event == l.lastEvent && l.reported {
		// Retransmitted end packet for an event already reported; RFC 4733
		// senders repeat the final packet for loss resilience.
		return
	}

	if !te.EndOfEvent {
		l.lastEvent, l.lastEventSet, l.reported = te.Event, true, false
		return
	}

	tone, ok := EventToRune(te.Event)
	if !ok {
		logger.Warn("dtmf: unrecognized telephone-event code", "event", te.Event)
		return
	}

	l.lastEvent, l.lastEventSet, l.reported = te.Event, true, true
	l.sink.SubmitDTMFTone(tone)
}
