package channels

import (
	"fmt"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

const (
	numOutputs       = 4
	defaultPrecision = 3
	defaultScan      = time.Second
	statusScan       = 10 * time.Second
	statusCommand    = "STATUS?"
	// outputBitOffset is the position of the output on/off bit in the STATUS? reply
	outputBitOffset = 5
)

// Registry is the static ordered catalog of channels
type Registry struct {
	specs []ChannelSpec
	index map[string]int
}

// NewRegistry validates the channel definitions and builds the registry
func NewRegistry(specs []ChannelSpec) (*Registry, error) {
	r := &Registry{
		specs: make([]ChannelSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		if len(spec.ID) == 0 {
			return nil, fmt.Errorf("%w: empty identifier", ErrInvalidChannel)
		}
		if len(spec.Query) == 0 && !spec.Writable() {
			return nil, fmt.Errorf("%w: channel %s has neither a query nor a write command", ErrInvalidChannel, spec.ID)
		}
		if spec.Writable() && len(spec.AllowedValues) == 0 {
			return nil, fmt.Errorf("%w: writable channel %s has no allowed values", ErrInvalidChannel, spec.ID)
		}
		_, found := r.index[spec.ID]
		if found {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, spec.ID)
		}

		r.index[spec.ID] = len(r.specs)
		r.specs = append(r.specs, spec)
	}

	return r, nil
}

// All returns the channel definitions in registry order
func (r *Registry) All() []ChannelSpec {
	result := make([]ChannelSpec, len(r.specs))
	copy(result, r.specs)

	return result
}

// Get returns the channel definition for the provided identifier
func (r *Registry) Get(id string) (ChannelSpec, bool) {
	idx, found := r.index[id]
	if !found {
		return ChannelSpec{}, false
	}

	return r.specs[idx], true
}

// Len returns the number of channels
func (r *Registry) Len() int {
	return len(r.specs)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (r *Registry) IsInterfaceNil() bool {
	return r == nil
}

// GPD4303SChannels returns the channel catalog of a GW Instek GPD-4303S bench supply
func GPD4303SChannels() []ChannelSpec {
	specs := []ChannelSpec{
		{
			ID:    "IDN",
			Query: "*IDN?",
			Kind:  common.KindString,
			Rule:  RulePassThrough,
		},
		{
			ID:         "OUTSTATUS",
			Query:      statusCommand,
			Kind:       common.KindFlag,
			Rule:       RuleFlagAt,
			FlagOffset: outputBitOffset,
			ScanPeriod: statusScan,
		},
		{
			ID:            "OUT",
			Query:         statusCommand,
			Kind:          common.KindFlag,
			Rule:          RuleFlagAt,
			FlagOffset:    outputBitOffset,
			WriteCommand:  "OUT%d",
			AllowedValues: []int64{0, 1},
		},
	}

	for ch := 1; ch <= numOutputs; ch++ {
		specs = append(specs,
			scalarChannel(fmt.Sprintf("CH%d:VOLTAGE", ch), fmt.Sprintf("VOUT%d?", ch), "V", defaultScan),
			scalarChannel(fmt.Sprintf("CH%d:VSET", ch), fmt.Sprintf("VSET%d?", ch), "V", 0),
			scalarChannel(fmt.Sprintf("CH%d:CURRENT", ch), fmt.Sprintf("IOUT%d?", ch), "A", defaultScan),
			scalarChannel(fmt.Sprintf("CH%d:ISET", ch), fmt.Sprintf("ISET%d?", ch), "A", 0),
		)
	}

	return specs
}

// NewGPD4303SRegistry builds the registry for a GPD-4303S supply
func NewGPD4303SRegistry() *Registry {
	r, err := NewRegistry(GPD4303SChannels())
	if err != nil {
		panic(fmt.Sprintf("built-in channel catalog is invalid: %v", err))
	}

	return r
}

func scalarChannel(id string, query string, unit string, scan time.Duration) ChannelSpec {
	return ChannelSpec{
		ID:         id,
		Query:      query,
		Kind:       common.KindScalar,
		Rule:       RuleNumericPrefix,
		Unit:       unit,
		Precision:  defaultPrecision,
		ScanPeriod: scan,
		Metric:     true,
	}
}
