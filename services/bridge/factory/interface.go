package factory

import (
	"context"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start() error
	Address() string
	Close() error
}

// InstrumentPoller defines the sweep and on-demand read operations
type InstrumentPoller interface {
	Process(ctx context.Context)
	ReadNow(ctx context.Context, id string) (common.ChannelValue, error)
	IsInterfaceNil() bool
}

// VariableTable defines the shared value store
type VariableTable interface {
	Get(id string) (common.ChannelValue, error)
	Snapshot() []common.ChannelValue
	WriteRequest(id string, value int64) (bool, error)
	IsInterfaceNil() bool
}

// MetricsBatcher defines a running line protocol pipeline towards one sink
type MetricsBatcher interface {
	Run(ctx context.Context, events <-chan common.ValueEvent)
	IsInterfaceNil() bool
}

// Bridge defines the MQTT link
type Bridge interface {
	Start() error
	Consume(ctx context.Context, events <-chan common.ValueEvent)
	Close() error
	IsInterfaceNil() bool
}

// Transport defines the instrument link
type Transport interface {
	Query(command string, timeout time.Duration) (string, error)
	Write(command string) error
	Close() error
	IsInterfaceNil() bool
}

// EventBus defines the value event fan-out
type EventBus interface {
	Subscribe(name string, bufferSize int) <-chan common.ValueEvent
	Publish(event common.ValueEvent)
	Close()
	IsInterfaceNil() bool
}

type closer interface {
	Close() error
}
