package poller

import "errors"

var errNilRegistry = errors.New("nil channel registry")
var errNilTransport = errors.New("nil transport")
var errNilTable = errors.New("nil variable table")
var errNilPublisher = errors.New("nil event publisher")
var errNilCollectors = errors.New("nil metrics collectors")

// ErrUnknownChannel signals a read request for a channel missing from the registry
var ErrUnknownChannel = errors.New("unknown channel")

// ErrNotQueryable signals a read request for a channel without a query command
var ErrNotQueryable = errors.New("channel has no query command")
