package visa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResource_InterfaceClass(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		desc     string
		rsrc     Resource
		expected string
	}{
		{
			desc:     "usbtmc instrument",
			rsrc:     "USB0::0x0699::0x0522::C012345::INSTR",
			expected: "USB",
		},
		{
			desc:     "serial instrument",
			rsrc:     "ASRL/dev/ttyUSB0::INSTR",
			expected: "ASRL",
		},
		{
			desc:     "raw socket instrument",
			rsrc:     "TCPIP0::192.168.1.20::5025::SOCKET",
			expected: "TCPIP",
		},
		{
			desc:     "lower case class is normalized",
			rsrc:     "usb0::0x1234::0x5678::INSTR",
			expected: "USB",
		},
		{
			desc:     "no leading letters",
			rsrc:     "0::whatever",
			expected: "",
		},
		{
			desc:     "empty descriptor",
			rsrc:     "",
			expected: "",
		},
	}

	for i, test := range tests {
		t.Logf("Test #%d: %s", i, test.desc)
		require.Equal(test.expected, test.rsrc.InterfaceClass())
	}
}

func TestResource_PartsAndValid(t *testing.T) {
	require := require.New(t)

	rsrc := Resource("USB0::0x0699::0x0522::C012345::INSTR")
	require.Equal([]string{"USB0", "0x0699", "0x0522", "C012345", "INSTR"}, rsrc.Parts())
	require.True(rsrc.Valid())

	require.True(Resource("ASRL/dev/ttyACM0::INSTR").Valid())
	require.False(Resource("USB0").Valid(), "single part is not addressable")
	require.False(Resource("0x0699::INSTR").Valid(), "missing interface class")
	require.False(Resource("").Valid())
}

func TestMatchFilter(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		desc     string
		filter   string
		rsrc     Resource
		expected bool
	}{
		{
			desc:     "generic instrument filter matches usbtmc",
			filter:   "?*INSTR",
			rsrc:     "USB0::0x0699::0x0522::C012345::INSTR",
			expected: true,
		},
		{
			desc:     "generic instrument filter matches serial",
			filter:   "?*INSTR",
			rsrc:     "ASRL/dev/ttyUSB0::INSTR",
			expected: true,
		},
		{
			desc:     "generic instrument filter rejects raw socket",
			filter:   "?*INSTR",
			rsrc:     "TCPIP0::10.0.0.5::5025::SOCKET",
			expected: false,
		},
		{
			desc:     "filter is case insensitive",
			filter:   "?*instr",
			rsrc:     "USB0::0x0699::0x0522::INSTR",
			expected: true,
		},
		{
			desc:     "question mark requires one character",
			filter:   "?*INSTR",
			rsrc:     "INSTR",
			expected: false,
		},
		{
			desc:     "class-restricted filter",
			filter:   "USB?*INSTR",
			rsrc:     "USB0::0x0699::0x0522::INSTR",
			expected: true,
		},
		{
			desc:     "class-restricted filter rejects other classes",
			filter:   "USB?*INSTR",
			rsrc:     "ASRL/dev/ttyUSB0::INSTR",
			expected: false,
		},
		{
			desc:     "star matches empty run",
			filter:   "USB0*::INSTR",
			rsrc:     "USB0::INSTR",
			expected: true,
		},
		{
			desc:     "match all",
			filter:   "*",
			rsrc:     "TCPIP0::host::5025::SOCKET",
			expected: true,
		},
		{
			desc:     "literal filter must match exactly",
			filter:   "USB0::0x0699::0x0522::INSTR",
			rsrc:     "USB0::0x0699::0x0523::INSTR",
			expected: false,
		},
		{
			desc:     "empty filter matches only empty descriptor",
			filter:   "",
			rsrc:     "USB0::INSTR",
			expected: false,
		},
	}

	for i, test := range tests {
		t.Logf("Test #%d: %s", i, test.desc)
		require.Equal(test.expected, MatchFilter(test.filter, test.rsrc))
	}
}
