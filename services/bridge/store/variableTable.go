package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/channels"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("store")

type slot struct {
	mut   sync.RWMutex
	value common.ChannelValue
	// writes counts the accepted write requests, readers use it to detect a write that overtook their query
	writes uint64
}

// variableTable holds the current value of every channel. The slots map is built once and never modified
// afterwards, each slot carries its own lock so updates on one key never wait on readers of another.
type variableTable struct {
	registry *channels.Registry
	slots    map[string]*slot
	writer   CommandWriter
	mutWrite sync.Mutex
}

// NewVariableTable creates a table with one zero-valued entry per registry channel
func NewVariableTable(registry *channels.Registry, writer CommandWriter) (*variableTable, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if check.IfNil(writer) {
		return nil, ErrNilCommandWriter
	}

	table := &variableTable{
		registry: registry,
		slots:    make(map[string]*slot, registry.Len()),
		writer:   writer,
	}

	for _, spec := range registry.All() {
		table.slots[spec.ID] = &slot{
			value: common.ChannelValue{
				ID:    spec.ID,
				Value: common.Value{Kind: spec.Kind},
			},
		}
	}

	return table, nil
}

// Get returns the last known value of the channel, even if stale
func (vt *variableTable) Get(id string) (common.ChannelValue, error) {
	s, found := vt.slots[id]
	if !found {
		return common.ChannelValue{}, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	s.mut.RLock()
	defer s.mut.RUnlock()

	return s.value, nil
}

// Set atomically replaces the channel value, updates its timestamp and clears the error flag
func (vt *variableTable) Set(id string, value common.Value, timestamp time.Time) error {
	s, found := vt.slots[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	return s.replace(id, value, timestamp)
}

// WriteGeneration returns the number of accepted writes on the channel. Pass it to SetIfUnwritten to store a
// reading only if no write was accepted since the query was sent.
func (vt *variableTable) WriteGeneration(id string) (uint64, error) {
	s, found := vt.slots[id]
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	s.mut.RLock()
	defer s.mut.RUnlock()

	return s.writes, nil
}

// SetIfUnwritten behaves like Set unless a write was accepted after the provided generation was read, in which
// case the reading is older than the stored value and is discarded. Returns true if the value was stored.
func (vt *variableTable) SetIfUnwritten(id string, value common.Value, timestamp time.Time, generation uint64) (bool, error) {
	s, found := vt.slots[id]
	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	if s.writes != generation {
		return false, nil
	}

	err := s.replace(id, value, timestamp)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *slot) replace(id string, value common.Value, timestamp time.Time) error {
	if s.value.Value.Kind != value.Kind {
		return fmt.Errorf("%w: channel %s holds %s, got %s", ErrKindMismatch, id, s.value.Value.Kind, value.Kind)
	}

	s.value.Value = value
	s.value.UpdatedAt = timestamp
	s.value.Stale = false
	s.value.LastError = ""

	return nil
}

// SetError marks the channel value as stale without touching the payload
func (vt *variableTable) SetError(id string, cause error) error {
	s, found := vt.slots[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	s.value.Stale = true
	s.value.ErrorCount++
	if cause != nil {
		s.value.LastError = cause.Error()
	}

	return nil
}

// WriteRequest validates the value for the writable channel, sends the command to the instrument and stores
// the new value. All other channels reject writes.
func (vt *variableTable) WriteRequest(id string, value int64) (bool, error) {
	spec, found := vt.registry.Get(id)
	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	if !spec.Writable() {
		return false, fmt.Errorf("%w: %s", ErrNotWritable, id)
	}
	if !spec.Validate(value) {
		return false, fmt.Errorf("%w: %d for channel %s, allowed %v", ErrInvalidValue, value, id, spec.AllowedValues)
	}

	vt.mutWrite.Lock()
	defer vt.mutWrite.Unlock()

	err := vt.writer.Write(spec.FormatWrite(value))
	if err != nil {
		log.Warn("write request failed", "channel", id, "value", value, "error", err)
		_ = vt.SetError(id, err)
		return false, err
	}

	log.Info("write request accepted", "channel", id, "value", value)

	s := vt.slots[id]
	s.mut.Lock()
	defer s.mut.Unlock()

	s.writes++

	return true, s.replace(id, common.FlagValue(value), time.Now())
}

// Snapshot returns all channel values in registry order
func (vt *variableTable) Snapshot() []common.ChannelValue {
	specs := vt.registry.All()
	result := make([]common.ChannelValue, 0, len(specs))
	for _, spec := range specs {
		value, err := vt.Get(spec.ID)
		if err != nil {
			continue
		}

		result = append(result, value)
	}

	return result
}

// IsInterfaceNil returns true if the value under the interface is nil
func (vt *variableTable) IsInterfaceNil() bool {
	return vt == nil
}
