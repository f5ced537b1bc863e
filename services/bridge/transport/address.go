package transport

import (
	"fmt"
	"net"
	"strings"
)

const (
	kindSerial = "serial"
	kindTCP    = "tcp"

	tcpScheme      = "tcp://"
	visaSerial     = "ASRL"
	visaInstr      = "::INSTR"
	visaTCPIP      = "TCPIP"
	visaSocket     = "SOCKET"
	visaSeparator  = "::"
	serialComLabel = "COM"
)

type resource struct {
	kind string
	path string
}

// parseAddress maps a device path, a tcp:// URL or a VISA resource string on a serial or network resource
func parseAddress(address string) (resource, error) {
	address = strings.TrimSpace(address)
	if len(address) == 0 {
		return resource{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	upper := strings.ToUpper(address)
	switch {
	case strings.HasPrefix(strings.ToLower(address), tcpScheme):
		return newTCPResource(address[len(tcpScheme):])
	case strings.HasPrefix(upper, visaTCPIP):
		return parseVisaSocket(address)
	case strings.HasPrefix(upper, visaSerial) && strings.HasSuffix(upper, visaInstr):
		path := address[len(visaSerial) : len(address)-len(visaInstr)]
		if len(path) == 0 {
			return resource{}, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
		}
		if isDigits(path) {
			path = serialComLabel + path
		}

		return resource{kind: kindSerial, path: path}, nil
	default:
		return resource{kind: kindSerial, path: address}, nil
	}
}

// parseVisaSocket handles TCPIP[board]::host::port::SOCKET
func parseVisaSocket(address string) (resource, error) {
	parts := strings.Split(address, visaSeparator)
	if len(parts) != 4 || !strings.EqualFold(parts[3], visaSocket) {
		return resource{}, fmt.Errorf("%w: %s, expected TCPIP::host::port::SOCKET", ErrInvalidAddress, address)
	}

	return newTCPResource(net.JoinHostPort(parts[1], parts[2]))
}

func newTCPResource(hostPort string) (resource, error) {
	_, port, err := net.SplitHostPort(hostPort)
	if err != nil || len(port) == 0 {
		return resource{}, fmt.Errorf("%w: %s", ErrInvalidAddress, hostPort)
	}

	return resource{kind: kindTCP, path: hostPort}, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return len(s) > 0
}
