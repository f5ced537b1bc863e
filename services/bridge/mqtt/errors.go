package mqtt

import "errors"

// ErrConnectionFailed signals that the broker could not be reached
var ErrConnectionFailed = errors.New("mqtt connection failed")

// ErrNotConnected signals an operation attempted while the broker link is down
var ErrNotConnected = errors.New("mqtt not connected")

var errEmptyBroker = errors.New("empty mqtt broker URL")
var errEmptyTopicPrefix = errors.New("empty mqtt topic prefix")
var errInvalidQoS = errors.New("invalid mqtt QoS")
var errNilWriteRequester = errors.New("nil write requester")
var errNilCollectors = errors.New("nil metrics collectors")
var errInvalidPayload = errors.New("invalid write payload")
