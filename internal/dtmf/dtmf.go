// Package dtmf decodes RFC 4733 telephone-event RTP packets into DTMF
// tones. This is event parsing, not audio demodulation: it reads the
// structured telephone-event payload pion/rtp already exposes, it does not
// analyze raw PCM samples.
package dtmf

import "fmt"

// Default RTP parameters for the telephone-event payload, matching common
// backend configuration.
const (
	PayloadType = 101
	SampleRate  = 8000
)

// event codes per RFC 4733 section 3.
const (
	evt0 = iota
	evt1
	evt2
	evt3
	evt4
	evt5
	evt6
	evt7
	evt8
	evt9
	evtStar
	evtPound
	evtA
	evtB
	evtC
	evtD
)

// RuneToEvent maps a DTMF tone rune to its RFC 4733 event code.
func RuneToEvent(r rune) (uint8, bool) {
	switch r {
	case '0':
		return evt0, true
	case '1':
		return evt1, true
	case '2':
		return evt2, true
	case '3':
		return evt3, true
	case '4':
		return evt4, true
	case '5':
		return evt5, true
	case '6':
		return evt6, true
	case '7':
		return evt7, true
	case '8':
		return evt8, true
	case '9':
		return evt9, true
	case '*':
		return evtStar, true
	case '#':
		return evtPound, true
	case 'A', 'a':
		return evtA, true
	case 'B', 'b':
		return evtB, true
	case 'C', 'c':
		return evtC, true
	case 'D', 'd':
		return evtD, true
	default:
		return 0, false
	}
}

// EventToRune maps an RFC 4733 event code to its DTMF tone rune.
func EventToRune(event uint8) (rune, bool) {
	switch event {
	case evt0:
		return '0', true
	case evt1:
		return '1', true
	case evt2:
		return '2', true
	case evt3:
		return '3', true
	case evt4:
		return '4', true
	case evt5:
		return '5', true
	case evt6:
		return '6', true
	case evt7:
		return '7', true
	case evt8:
		return '8', true
	case evt9:
		return '9', true
	case evtStar:
		return '*', true
	case evtPound:
		return '#', true
	case evtA:
		return 'A', true
	case evtB:
		return 'B', true
	case evtC:
		return 'C', true
	case evtD:
		return 'D', true
	default:
		return 0, false
	}
}

// TelephoneEvent is the 4-byte RFC 4733 payload carried in a DTMF RTP
// packet: event code, end-of-event bit, volume, and duration in timestamp
// units.
type TelephoneEvent struct {
	Event      uint8
	EndOfEvent bool
	Volume     uint8
	Duration   uint16
}

// DecodeTelephoneEvent parses the 4-byte telephone-event payload.
func DecodeTelephoneEvent(payload []byte) (TelephoneEvent, error) {
	if len(payload) < 4 {
		return TelephoneEvent{}, fmt.Errorf("dtmf: short telephone-event payload: %d bytes", len(payload))
	}
	return TelephoneEvent{
		Event:      payload[0],
		EndOfEvent: payload[1]&0x80 != 0,
		Volume:     payload[1] & 0x3f,
		Duration:   uint16(payload[2])<<8 | uint16(payload[3]),
	}, nil
}
