package testsCommon

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// FakeInstrument is a TCP server emulating a GPD-4303S supply
type FakeInstrument struct {
	listener  net.Listener
	mut       sync.Mutex
	responses map[string]string
	delays    map[string]time.Duration
	silent    map[string]bool
	received  []string
	wg        sync.WaitGroup
}

// NewFakeInstrument starts listening on a random local port
func NewFakeInstrument() (*FakeInstrument, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	fi := &FakeInstrument{
		listener:  listener,
		responses: defaultResponses(),
		delays:    make(map[string]time.Duration),
		silent:    make(map[string]bool),
	}

	fi.wg.Add(1)
	go fi.acceptLoop()

	return fi, nil
}

func defaultResponses() map[string]string {
	responses := map[string]string{
		"*IDN?":   "GW INSTEK,GPD-4303S,SN:EM123456,V1.00",
		"STATUS?": "00000000",
	}
	for ch := 1; ch <= 4; ch++ {
		responses[fmt.Sprintf("VOUT%d?", ch)] = fmt.Sprintf("%d.000V", ch)
		responses[fmt.Sprintf("IOUT%d?", ch)] = fmt.Sprintf("0.%d00A", ch)
		responses[fmt.Sprintf("VSET%d?", ch)] = fmt.Sprintf("%d.000V", ch)
		responses[fmt.Sprintf("ISET%d?", ch)] = "1.000A"
	}

	return responses
}

// Address returns the transport address of the instrument
func (fi *FakeInstrument) Address() string {
	return "tcp://" + fi.listener.Addr().String()
}

// SetResponse changes the reply sent for a command
func (fi *FakeInstrument) SetResponse(command string, reply string) {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	fi.responses[command] = reply
}

// SetDelay delays the reply sent for a command
func (fi *FakeInstrument) SetDelay(command string, delay time.Duration) {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	fi.delays[command] = delay
}

// SetSilent makes the instrument never reply to a command
func (fi *FakeInstrument) SetSilent(command string, silent bool) {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	fi.silent[command] = silent
}

// Received returns all commands received so far
func (fi *FakeInstrument) Received() []string {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	result := make([]string, len(fi.received))
	copy(result, fi.received)

	return result
}

// CountReceived returns how many times a command was received
func (fi *FakeInstrument) CountReceived(command string) int {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	count := 0
	for _, c := range fi.received {
		if c == command {
			count++
		}
	}

	return count
}

// Close stops the instrument
func (fi *FakeInstrument) Close() {
	_ = fi.listener.Close()
	fi.wg.Wait()
}

func (fi *FakeInstrument) acceptLoop() {
	defer fi.wg.Done()

	for {
		conn, err := fi.listener.Accept()
		if err != nil {
			return
		}

		go fi.serve(conn)
	}
}

func (fi *FakeInstrument) serve(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		command := strings.TrimSpace(line)
		reply, delay, silent, found := fi.handle(command)
		if silent || !found {
			continue
		}

		time.Sleep(delay)
		_, err = conn.Write([]byte(reply + "\r\n"))
		if err != nil {
			return
		}
	}
}

func (fi *FakeInstrument) handle(command string) (string, time.Duration, bool, bool) {
	fi.mut.Lock()
	defer fi.mut.Unlock()

	fi.received = append(fi.received, command)

	switch command {
	case "OUT0", "OUT1":
		status := []byte(fi.responses["STATUS?"])
		status[5] = command[3]
		fi.responses["STATUS?"] = string(status)
		return "", 0, false, false
	}

	reply, found := fi.responses[command]

	return reply, fi.delays[command], fi.silent[command], found
}
