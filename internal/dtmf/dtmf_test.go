package dtmf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuneEventRoundTrip(t *testing.T) {
	for _, r := range []rune{'0', '5', '9', '*', '#', 'A', 'D'} {
		event, ok := RuneToEvent(r)
		require.True(t, ok)
		back, ok := EventToRune(event)
		require.True(t, ok)
		require.Equal(t, r, back)
	}
}

func TestRuneToEventUnknown(t *testing.T) {
	_, ok := RuneToEvent('Z')
	require.False(t, ok)
}

func TestDecodeTelephoneEvent(t *testing.T) {
	// event=5, end-of-event set, volume=10, duration=160
	payload := []byte{5, 0x80 | 10, 0x00, 0xA0}
	te, err := DecodeTelephoneEvent(payload)
	require.NoError(t, err)
	require.Equal(t, uint8(5), te.Event)
	require.True(t, te.EndOfEvent)
	require.Equal(t, uint8(10), te.Volume)
	require.Equal(t, uint16(160), te.Duration)
}

func TestDecodeTelephoneEventShortPayload(t *testing.T) {
	_, err := DecodeTelephoneEvent([]byte{1, 2})
	require.Error(t, err)
}
