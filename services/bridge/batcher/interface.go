package batcher

import (
	"context"

	"github.com/iulianpascalau/psu-bridge/services/bridge/queue"
)

// Sink defines the remote endpoint receiving the batches
type Sink interface {
	// Send delivers the batch. Errors exposing a Permanent() bool method returning true mark the content as
	// rejected for good, every other error is considered transient.
	Send(ctx context.Context, lines []string) error
	Name() string
	Close() error

	IsInterfaceNil() bool
}

// OutboundQueue defines the ordered buffer of formatted lines. Lines leave the queue only after an acknowledge.
type OutboundQueue interface {
	Append(lines ...string) (int, error)
	Peek(max int) (queue.Batch, error)
	Remove(upToID uint64) error
	Len() int
	Close() error

	IsInterfaceNil() bool
}
