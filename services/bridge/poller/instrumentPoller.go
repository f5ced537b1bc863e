package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/channels"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("poller")

// ArgsInstrumentPoller defines the arguments needed to create the poller
type ArgsInstrumentPoller struct {
	Registry     *channels.Registry
	Transport    Transport
	Table        VariableTable
	Publisher    EventPublisher
	Collectors   *metrics.Collectors
	QueryTimeout time.Duration
}

type instrumentPoller struct {
	registry     *channels.Registry
	transport    Transport
	table        VariableTable
	publisher    EventPublisher
	collectors   *metrics.Collectors
	queryTimeout time.Duration
	timeFunc     func() time.Time

	mutLastRead  sync.Mutex
	lastRead     map[string]time.Time
	initialSweep bool
}

// NewInstrumentPoller creates the component that sweeps the instrument channels
func NewInstrumentPoller(args ArgsInstrumentPoller) (*instrumentPoller, error) {
	if args.Registry == nil {
		return nil, errNilRegistry
	}
	if check.IfNil(args.Transport) {
		return nil, errNilTransport
	}
	if check.IfNil(args.Table) {
		return nil, errNilTable
	}
	if check.IfNil(args.Publisher) {
		return nil, errNilPublisher
	}
	if check.IfNil(args.Collectors) {
		return nil, errNilCollectors
	}

	return &instrumentPoller{
		registry:     args.Registry,
		transport:    args.Transport,
		table:        args.Table,
		publisher:    args.Publisher,
		collectors:   args.Collectors,
		queryTimeout: args.QueryTimeout,
		timeFunc:     time.Now,
		lastRead:     make(map[string]time.Time),
		initialSweep: true,
	}, nil
}

// Process runs one sweep: every channel whose scan period elapsed since its last successful read is queried.
// The first sweep reads all channels, including the on-demand ones, so the table starts populated.
// A failing channel never stops the sweep.
func (p *instrumentPoller) Process(ctx context.Context) {
	sweepStart := p.timeFunc()
	due := p.dueChannels(sweepStart)

	log.Trace("sweep started", "due", len(due))

	numFailed := 0
	for _, spec := range due {
		if ctx.Err() != nil {
			return
		}

		err := p.readChannel(spec, sweepStart)
		if err != nil {
			numFailed++
		}
	}

	if numFailed > 0 {
		log.Debug("sweep finished with errors", "due", len(due), "failed", numFailed)
	}
}

func (p *instrumentPoller) dueChannels(now time.Time) []channels.ChannelSpec {
	p.mutLastRead.Lock()
	defer p.mutLastRead.Unlock()

	initial := p.initialSweep
	p.initialSweep = false

	due := make([]channels.ChannelSpec, 0, p.registry.Len())
	for _, spec := range p.registry.All() {
		if len(spec.Query) == 0 {
			continue
		}
		if initial {
			due = append(due, spec)
			continue
		}
		if spec.OnDemand() {
			continue
		}

		last, found := p.lastRead[spec.ID]
		if !found || now.Sub(last) >= spec.ScanPeriod {
			due = append(due, spec)
		}
	}

	return due
}

// ReadNow queries the channel immediately on behalf of a client. The returned value is the last known one,
// which is the fresh reading unless an error is returned.
func (p *instrumentPoller) ReadNow(ctx context.Context, id string) (common.ChannelValue, error) {
	spec, found := p.registry.Get(id)
	if !found {
		return common.ChannelValue{}, fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	if len(spec.Query) == 0 {
		return common.ChannelValue{}, fmt.Errorf("%w: %s", ErrNotQueryable, id)
	}
	if ctx.Err() != nil {
		return common.ChannelValue{}, ctx.Err()
	}

	readErr := p.readChannel(spec, p.timeFunc())
	value, err := p.table.Get(id)
	if err != nil {
		return common.ChannelValue{}, err
	}

	return value, readErr
}

func (p *instrumentPoller) readChannel(spec channels.ChannelSpec, sweepStart time.Time) error {
	generation, err := p.table.WriteGeneration(spec.ID)
	if err != nil {
		return err
	}

	start := time.Now()
	reply, err := p.transport.Query(spec.Query, p.queryTimeout)
	p.collectors.QueryDuration.WithLabelValues(spec.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("channel query failed", "channel", spec.ID, "command", spec.Query, "error", err)
		p.collectors.QueryErrors.WithLabelValues(spec.ID).Inc()
		p.markError(spec.ID, err)

		return err
	}

	value, err := spec.Parse(reply)
	if err != nil {
		log.Warn("could not parse instrument reply", "channel", spec.ID, "reply", reply, "error", err)
		p.collectors.ParseErrors.WithLabelValues(spec.ID).Inc()
		p.markError(spec.ID, err)

		return err
	}

	timestamp := p.timeFunc()
	stored, err := p.table.SetIfUnwritten(spec.ID, value, timestamp, generation)
	if err != nil {
		log.Error("could not store channel value", "channel", spec.ID, "error", err)
		return err
	}
	if !stored {
		log.Debug("reading overtaken by a write request, discarded", "channel", spec.ID, "reply", reply)
		return nil
	}

	p.mutLastRead.Lock()
	p.lastRead[spec.ID] = sweepStart
	p.mutLastRead.Unlock()

	p.collectors.ChannelUpdates.WithLabelValues(spec.ID).Inc()
	p.publisher.Publish(common.ValueEvent{
		ID:        spec.ID,
		Value:     value,
		Timestamp: timestamp,
	})

	return nil
}

func (p *instrumentPoller) markError(id string, cause error) {
	err := p.table.SetError(id, cause)
	log.LogIfError(err, "channel", id)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (p *instrumentPoller) IsInterfaceNil() bool {
	return p == nil
}
