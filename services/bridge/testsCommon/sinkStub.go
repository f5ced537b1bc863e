package testsCommon

import (
	"context"
	"sync"
)

// SinkStub -
type SinkStub struct {
	SendHandler  func(ctx context.Context, lines []string) error
	CloseHandler func() error
	SinkName     string

	mut     sync.Mutex
	batches [][]string
}

// Send -
func (stub *SinkStub) Send(ctx context.Context, lines []string) error {
	stub.mut.Lock()
	batch := make([]string, len(lines))
	copy(batch, lines)
	stub.batches = append(stub.batches, batch)
	stub.mut.Unlock()

	if stub.SendHandler != nil {
		return stub.SendHandler(ctx, lines)
	}

	return nil
}

// Batches -
func (stub *SinkStub) Batches() [][]string {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	result := make([][]string, len(stub.batches))
	copy(result, stub.batches)

	return result
}

// Name -
func (stub *SinkStub) Name() string {
	if len(stub.SinkName) > 0 {
		return stub.SinkName
	}

	return "stub"
}

// Close -
func (stub *SinkStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *SinkStub) IsInterfaceNil() bool {
	return stub == nil
}
