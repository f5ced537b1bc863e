package transport

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
)

const (
	defaultBaudRate         = 9600
	defaultTimeout          = 5 * time.Second
	defaultWriteTermination = "\n"
	readTermination         = '\n'
	readChunkSize           = 256
	// minDrainWindow bounds the socket drain done before every command
	minDrainWindow = time.Millisecond
	// resyncWindow is how long a late reply is waited for, and dropped, after a timed out query
	resyncWindow = 50 * time.Millisecond
)

var log = logger.GetOrCreate("transport")

// ArgsLineTransport defines the arguments needed to open an instrument connection
type ArgsLineTransport struct {
	Address          string
	BaudRate         int
	Timeout          time.Duration
	WriteTermination string
}

// lineTransport is a half-duplex request/response link. Only one exchange can be in flight at a time.
type lineTransport struct {
	mut              sync.Mutex
	port             port
	address          string
	timeout          time.Duration
	writeTermination string
	pending          []byte
	outOfSync        bool
	closed           bool
}

// Open connects to the instrument found at the provided address
func Open(args ArgsLineTransport) (*lineTransport, error) {
	res, err := parseAddress(args.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	applyDefaults(&args)

	var p port
	switch res.kind {
	case kindTCP:
		p, err = openTCPPort(res.path, args.Timeout)
	default:
		p, err = openSerialPort(res.path, args.BaudRate)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("instrument connection opened", "address", args.Address, "kind", res.kind, "timeout", args.Timeout)

	return newLineTransport(p, args), nil
}

func applyDefaults(args *ArgsLineTransport) {
	if args.BaudRate <= 0 {
		args.BaudRate = defaultBaudRate
	}
	if args.Timeout <= 0 {
		args.Timeout = defaultTimeout
	}
	if len(args.WriteTermination) == 0 {
		args.WriteTermination = defaultWriteTermination
	}
}

func newLineTransport(p port, args ArgsLineTransport) *lineTransport {
	return &lineTransport{
		port:             p,
		address:          args.Address,
		timeout:          args.Timeout,
		writeTermination: args.WriteTermination,
	}
}

// Query sends the command and waits for a line-terminated reply. A zero timeout uses the configured one.
func (t *lineTransport) Query(command string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}

	t.mut.Lock()
	defer t.mut.Unlock()

	err := t.send(command)
	if err != nil {
		return "", err
	}

	return t.readLine(command, time.Now().Add(timeout), timeout)
}

// Write sends a command that produces no reply
func (t *lineTransport) Write(command string) error {
	t.mut.Lock()
	defer t.mut.Unlock()

	return t.send(command)
}

func (t *lineTransport) send(command string) error {
	if t.closed {
		return ErrClosed
	}

	wait := time.Duration(0)
	if t.outOfSync {
		wait = resyncWindow
		t.outOfSync = false
	}
	t.pending = t.pending[:0]
	t.port.DiscardInput(wait)

	_, err := t.port.Write([]byte(command + t.writeTermination))
	if err != nil {
		return fmt.Errorf("%w: writing %q: %w", ErrIO, command, err)
	}

	return nil
}

func (t *lineTransport) readLine(command string, deadline time.Time, timeout time.Duration) (string, error) {
	buff := make([]byte, readChunkSize)
	for {
		idx := bytes.IndexByte(t.pending, readTermination)
		if idx >= 0 {
			line := string(t.pending[:idx])
			t.pending = t.pending[idx+1:]

			return strings.TrimRight(line, "\r"), nil
		}

		n, err := t.port.ReadWithDeadline(buff, deadline)
		t.pending = append(t.pending, buff[:n]...)
		if errors.Is(err, errReadTimeout) {
			// the reply may still come and must not be taken as the answer to the next command
			t.outOfSync = true
			return "", fmt.Errorf("%w: no reply to %q within %v", ErrTimeout, command, timeout)
		}
		if err != nil {
			return "", fmt.Errorf("%w: reading reply to %q: %w", ErrIO, command, err)
		}
	}
}

// Address returns the address the transport was opened with
func (t *lineTransport) Address() string {
	return t.address
}

// Close releases the underlying port
func (t *lineTransport) Close() error {
	t.mut.Lock()
	defer t.mut.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.port.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (t *lineTransport) IsInterfaceNil() bool {
	return t == nil
}
