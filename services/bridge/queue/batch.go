package queue

import "errors"

// Batch is a prefix of the queue returned by Peek. LastID identifies the newest line of the batch and is used to
// acknowledge it.
type Batch struct {
	Lines  []string
	LastID uint64
}

// ErrClosed signals an operation on a closed queue
var ErrClosed = errors.New("queue closed")
