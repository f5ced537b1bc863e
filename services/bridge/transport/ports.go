package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.bug.st/serial"
)

// port is the byte-level link to the instrument
type port interface {
	Write(p []byte) (int, error)
	ReadWithDeadline(p []byte, deadline time.Time) (int, error)
	// DiscardInput drops the unread input, including what arrives during the provided wait
	DiscardInput(wait time.Duration)
	Close() error
}

type serialPort struct {
	port serial.Port
}

func openSerialPort(path string, baudRate int) (*serialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening serial port %s: %w", ErrConnection, path, err)
	}

	err = p.ResetInputBuffer()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: resetting serial port %s: %w", ErrConnection, path, err)
	}

	return &serialPort{port: p}, nil
}

// Write sends the bytes to the serial line
func (sp *serialPort) Write(p []byte) (int, error) {
	return sp.port.Write(p)
}

// ReadWithDeadline reads what is available until the deadline. The serial driver returns 0 bytes and no error on timeout.
func (sp *serialPort) ReadWithDeadline(p []byte, deadline time.Time) (int, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, errReadTimeout
	}

	err := sp.port.SetReadTimeout(remaining)
	if err != nil {
		return 0, err
	}

	n, err := sp.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, errReadTimeout
	}

	return n, nil
}

// DiscardInput drops bytes left over from a previous exchange
func (sp *serialPort) DiscardInput(wait time.Duration) {
	if wait > 0 {
		time.Sleep(wait)
	}
	_ = sp.port.ResetInputBuffer()
}

// Close closes the serial port
func (sp *serialPort) Close() error {
	return sp.port.Close()
}

type tcpPort struct {
	conn net.Conn
}

func openTCPPort(hostPort string, timeout time.Duration) (*tcpPort, error) {
	conn, err := net.DialTimeout("tcp", hostPort, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnection, hostPort, err)
	}

	return &tcpPort{conn: conn}, nil
}

// Write sends the bytes on the socket
func (tp *tcpPort) Write(p []byte) (int, error) {
	return tp.conn.Write(p)
}

// ReadWithDeadline reads what is available until the deadline
func (tp *tcpPort) ReadWithDeadline(p []byte, deadline time.Time) (int, error) {
	err := tp.conn.SetReadDeadline(deadline)
	if err != nil {
		return 0, err
	}

	n, err := tp.conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, errReadTimeout
	}

	return n, err
}

// DiscardInput reads and drops whatever the socket delivers until the wait elapses
func (tp *tcpPort) DiscardInput(wait time.Duration) {
	deadline := time.Now().Add(max(wait, minDrainWindow))
	buff := make([]byte, readChunkSize)
	for {
		n, err := tp.ReadWithDeadline(buff, deadline)
		if n > 0 {
			log.Debug("discarded stale instrument input", "bytes", n)
		}
		if err != nil {
			return
		}
	}
}

// Close closes the socket
func (tp *tcpPort) Close() error {
	return tp.conn.Close()
}
