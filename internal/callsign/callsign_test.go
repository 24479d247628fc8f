package callsign

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromFlightNumber(t *testing.T) {
	cases := map[string]string{
		"sq114":    "SIA114",
		"SQ 238":   "SIA238",
		" tr 12 ":  "TGW12",
		"3K685":    "JSA685",
		"ZZ123":    "ZZ123",
		"QF1A":     "QFA1A",
		"notaflt":  "NOTAFLT",
		"":         "",
	}
	for in, want := range cases {
		require.Equal(t, want, FromFlightNumber(in), "input %q", in)
	}
}

func TestSplit(t *testing.T) {
	a, n, ok := Split("sq 114")
	require.True(t, ok)
	require.Equal(t, "SQ", a)
	require.Equal(t, "114", n)

	_, _, ok = Split("12345")
	require.False(t, ok)
}

func TestAirlineICAO_Fallback(t *testing.T) {
	require.Equal(t, "SIA", AirlineICAO("sq"))
	require.Equal(t, "XY", AirlineICAO("XY"))
}
