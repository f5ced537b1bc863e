package testsCommon

import (
	"sync"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

// EventPublisherStub -
type EventPublisherStub struct {
	mut    sync.Mutex
	events []common.ValueEvent
}

// Publish -
func (stub *EventPublisherStub) Publish(event common.ValueEvent) {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	stub.events = append(stub.events, event)
}

// Events -
func (stub *EventPublisherStub) Events() []common.ValueEvent {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	result := make([]common.ValueEvent, len(stub.events))
	copy(result, stub.events)

	return result
}

// IsInterfaceNil -
func (stub *EventPublisherStub) IsInterfaceNil() bool {
	return stub == nil
}
