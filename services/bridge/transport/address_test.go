package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()

	t.Run("valid addresses", func(t *testing.T) {
		t.Parallel()

		cases := map[string]resource{
			"/dev/ttyUSB0":                  {kind: kindSerial, path: "/dev/ttyUSB0"},
			"ASRL/dev/ttyUSB0::INSTR":       {kind: kindSerial, path: "/dev/ttyUSB0"},
			"asrl/dev/ttyACM1::instr":       {kind: kindSerial, path: "/dev/ttyACM1"},
			"ASRL3::INSTR":                  {kind: kindSerial, path: "COM3"},
			"tcp://127.0.0.1:5025":          {kind: kindTCP, path: "127.0.0.1:5025"},
			"TCPIP::10.0.0.5::1026::SOCKET": {kind: kindTCP, path: "10.0.0.5:1026"},
			"TCPIP0::psu.lan::5025::SOCKET": {kind: kindTCP, path: "psu.lan:5025"},
			"  /dev/serial/by-id/usb-gw  ":  {kind: kindSerial, path: "/dev/serial/by-id/usb-gw"},
		}
		for address, expected := range cases {
			res, err := parseAddress(address)
			require.NoError(t, err, address)
			assert.Equal(t, expected, res, address)
		}
	})
	t.Run("invalid addresses", func(t *testing.T) {
		t.Parallel()

		for _, address := range []string{"", "   ", "ASRL::INSTR", "tcp://localhost", "TCPIP::host::SOCKET", "TCPIP::host::5025::INSTR"} {
			_, err := parseAddress(address)
			assert.True(t, errors.Is(err, ErrInvalidAddress), address)
		}
	})
}
