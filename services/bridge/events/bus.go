package events

import (
	"sync"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	logger "github.com/multiversx/mx-chain-logger-go"
)

const defaultBufferSize = 1024

var log = logger.GetOrCreate("events")

type subscription struct {
	name string
	ch   chan common.ValueEvent
}

// eventBus fans value events out to independent subscribers. Publishing never blocks: an event that does not
// fit in a subscriber buffer is dropped for that subscriber only.
type eventBus struct {
	mut         sync.RWMutex
	subscribers []*subscription
	closed      bool
	collectors  *metrics.Collectors
}

// NewEventBus creates an event bus
func NewEventBus(collectors *metrics.Collectors) *eventBus {
	return &eventBus{
		collectors: collectors,
	}
}

// Subscribe registers a new consumer. A non-positive buffer size uses the default.
func (bus *eventBus) Subscribe(name string, bufferSize int) <-chan common.ValueEvent {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	sub := &subscription{
		name: name,
		ch:   make(chan common.ValueEvent, bufferSize),
	}

	bus.mut.Lock()
	defer bus.mut.Unlock()

	if bus.closed {
		close(sub.ch)
		return sub.ch
	}

	bus.subscribers = append(bus.subscribers, sub)

	return sub.ch
}

// Publish delivers the event to every subscriber that has room for it
func (bus *eventBus) Publish(event common.ValueEvent) {
	bus.mut.RLock()
	defer bus.mut.RUnlock()

	if bus.closed {
		return
	}

	for _, sub := range bus.subscribers {
		select {
		case sub.ch <- event:
		default:
			log.Debug("subscriber buffer full, event dropped", "subscriber", sub.name, "channel", event.ID)
			if bus.collectors != nil {
				bus.collectors.DroppedEvents.WithLabelValues(sub.name).Inc()
			}
		}
	}
}

// Close closes all subscriber channels
func (bus *eventBus) Close() {
	bus.mut.Lock()
	defer bus.mut.Unlock()

	if bus.closed {
		return
	}
	bus.closed = true

	for _, sub := range bus.subscribers {
		close(sub.ch)
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (bus *eventBus) IsInterfaceNil() bool {
	return bus == nil
}
