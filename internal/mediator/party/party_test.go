package party

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPhone(t *testing.T) {
	kind, transformed, err := Classify("+15551234567")
	require.NoError(t, err)
	require.Equal(t, Phone, kind)
	require.Equal(t, "0015551234567", transformed)
}

func TestClassifyHandle(t *testing.T) {
	kind, transformed, err := Classify("jdoe_42")
	require.NoError(t, err)
	require.Equal(t, Handle, kind)
	require.Equal(t, "jdoe_42", transformed)
}

func TestClassifyInvalid(t *testing.T) {
	for _, s := range []string{"", "+", "+0123", "123abc", "_jdoe"} {
		_, _, err := Classify(s)
		require.Error(t, err)
		var invalid *InvalidPartyError
		require.ErrorAs(t, err, &invalid)
	}
}
