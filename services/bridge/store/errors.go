package store

import "errors"

// ErrUnknownChannel signals an identifier missing from the registry
var ErrUnknownChannel = errors.New("unknown channel")

// ErrNotWritable signals a write request on a read-only channel
var ErrNotWritable = errors.New("channel is not writable")

// ErrInvalidValue signals a write request with a value outside the allowed states
var ErrInvalidValue = errors.New("value not allowed")

// ErrKindMismatch signals a value whose kind differs from the channel's kind
var ErrKindMismatch = errors.New("value kind mismatch")

// ErrNilRegistry signals a missing channel registry
var ErrNilRegistry = errors.New("nil channel registry")

// ErrNilCommandWriter signals a missing command writer
var ErrNilCommandWriter = errors.New("nil command writer")
