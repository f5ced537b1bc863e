package batcher

import "errors"

var errNilRegistry = errors.New("nil channel registry")
var errNilQueue = errors.New("nil outbound queue")
var errNilSink = errors.New("nil sink")
var errNilCollectors = errors.New("nil metrics collectors")
var errInvalidBatchSize = errors.New("invalid batch size")
var errInvalidInterval = errors.New("invalid flush interval")
