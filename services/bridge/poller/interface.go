package poller

import (
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

// Transport defines the request/response link to the instrument
type Transport interface {
	// Query sends the command and returns the reply line. Implementations serialize concurrent callers.
	Query(command string, timeout time.Duration) (string, error)

	IsInterfaceNil() bool
}

// VariableTable defines the store receiving the polled values
type VariableTable interface {
	Get(id string) (common.ChannelValue, error)
	Set(id string, value common.Value, timestamp time.Time) error
	SetError(id string, cause error) error
	WriteGeneration(id string) (uint64, error)
	SetIfUnwritten(id string, value common.Value, timestamp time.Time, generation uint64) (bool, error)

	IsInterfaceNil() bool
}

// EventPublisher defines the component notified after each successful update. Publish must not block.
type EventPublisher interface {
	Publish(event common.ValueEvent)

	IsInterfaceNil() bool
}
