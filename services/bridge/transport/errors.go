package transport

import "errors"

// ErrConnection signals that the instrument connection could not be opened
var ErrConnection = errors.New("connection error")

// ErrTimeout signals that the instrument did not reply within the configured timeout
var ErrTimeout = errors.New("timeout error")

// ErrIO signals a read or write failure on an open connection
var ErrIO = errors.New("i/o error")

// ErrClosed signals an operation on a closed transport
var ErrClosed = errors.New("transport closed")

// ErrInvalidAddress signals an address that can not be mapped on a serial or network resource
var ErrInvalidAddress = errors.New("invalid instrument address")

var errReadTimeout = errors.New("read timeout")
