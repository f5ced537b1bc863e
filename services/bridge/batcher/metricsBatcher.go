package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iulianpascalau/psu-bridge/commonGo"
	"github.com/iulianpascalau/psu-bridge/services/bridge/channels"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("batcher")

const (
	defaultFlushTimeout = 10 * time.Second
)

// ArgsMetricsBatcher defines the arguments needed to create a metrics batcher
type ArgsMetricsBatcher struct {
	Host         string
	Registry     *channels.Registry
	Queue        OutboundQueue
	Sink         Sink
	Collectors   *metrics.Collectors
	BatchSize    int
	FastInterval time.Duration
	IdleInterval time.Duration
	FlushTimeout time.Duration
}

type metricsBatcher struct {
	host         string
	registry     *channels.Registry
	queue        OutboundQueue
	sink         Sink
	collectors   *metrics.Collectors
	batchSize    int
	fastInterval time.Duration
	idleInterval time.Duration
	flushTimeout time.Duration

	mutFailing sync.Mutex
	failing    bool
}

// NewMetricsBatcher creates the component that turns value events into line protocol points and delivers them
// to the sink in fixed-size batches
func NewMetricsBatcher(args ArgsMetricsBatcher) (*metricsBatcher, error) {
	if args.Registry == nil {
		return nil, errNilRegistry
	}
	if check.IfNil(args.Queue) {
		return nil, errNilQueue
	}
	if check.IfNil(args.Sink) {
		return nil, errNilSink
	}
	if check.IfNil(args.Collectors) {
		return nil, errNilCollectors
	}
	if args.BatchSize <= 0 {
		return nil, errInvalidBatchSize
	}
	if args.FastInterval <= 0 || args.IdleInterval <= 0 {
		return nil, errInvalidInterval
	}

	flushTimeout := args.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}

	return &metricsBatcher{
		host:         args.Host,
		registry:     args.Registry,
		queue:        args.Queue,
		sink:         args.Sink,
		collectors:   args.Collectors,
		batchSize:    args.BatchSize,
		fastInterval: args.FastInterval,
		idleInterval: args.IdleInterval,
		flushTimeout: flushTimeout,
	}, nil
}

// Consume reads value events until the context is done or the channel is closed
func (mb *metricsBatcher) Consume(ctx context.Context, events <-chan common.ValueEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			mb.Add(event)
		}
	}
}

// Add formats the event and appends it to the outbound queue. Events of non-metric channels are ignored.
func (mb *metricsBatcher) Add(event common.ValueEvent) {
	spec, found := mb.registry.Get(event.ID)
	if !found || !spec.Metric {
		return
	}

	line, err := FormatLine(mb.host, event)
	if err != nil {
		log.Debug("skipping value event", "channel", event.ID, "error", err)
		return
	}

	dropped, err := mb.queue.Append(line)
	if err != nil {
		log.Error("could not append to the outbound queue", "sink", mb.sink.Name(), "error", err)
		return
	}
	if dropped > 0 {
		log.Debug("outbound queue full, oldest lines dropped", "sink", mb.sink.Name(), "dropped", dropped)
		mb.collectors.DroppedLines.WithLabelValues(mb.sink.Name(), metrics.DropOverflow).Add(float64(dropped))
	}
}

// Flush sends one batch if the queue reached the batch size. The batch leaves the queue only when the sink
// acknowledged it or rejected its content for good.
func (mb *metricsBatcher) Flush(ctx context.Context) {
	length := mb.queue.Len()
	mb.collectors.QueueLength.WithLabelValues(mb.sink.Name()).Set(float64(length))
	if length < mb.batchSize {
		return
	}

	batch, err := mb.queue.Peek(mb.batchSize)
	if err != nil {
		log.Error("could not read from the outbound queue", "sink", mb.sink.Name(), "error", err)
		return
	}
	if len(batch.Lines) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, mb.flushTimeout)
	err = mb.sink.Send(sendCtx, batch.Lines)
	cancel()

	switch {
	case err == nil:
		mb.collectors.Flushes.WithLabelValues(mb.sink.Name(), metrics.FlushOK).Inc()
		mb.markRecovered()
	case isPermanent(err):
		log.Error("sink rejected batch, dropping it", "sink", mb.sink.Name(), "lines", len(batch.Lines), "error", err)
		mb.collectors.Flushes.WithLabelValues(mb.sink.Name(), metrics.FlushRejected).Inc()
		mb.collectors.DroppedLines.WithLabelValues(mb.sink.Name(), metrics.DropRejected).Add(float64(len(batch.Lines)))
		// any answer means the endpoint is reachable again
		mb.markRecovered()
	default:
		mb.collectors.Flushes.WithLabelValues(mb.sink.Name(), metrics.FlushTransient).Inc()
		mb.markFailing(err)
		return
	}

	err = mb.queue.Remove(batch.LastID)
	if err != nil {
		log.Error("could not acknowledge batch", "sink", mb.sink.Name(), "last id", batch.LastID, "error", err)
	}
	mb.collectors.QueueLength.WithLabelValues(mb.sink.Name()).Set(float64(mb.queue.Len()))
}

func (mb *metricsBatcher) markFailing(err error) {
	mb.mutFailing.Lock()
	defer mb.mutFailing.Unlock()

	if mb.failing {
		return
	}

	mb.failing = true
	log.Warn("sink unavailable, retaining batches", "sink", mb.sink.Name(), "queued", mb.queue.Len(), "error", err)
}

func (mb *metricsBatcher) markRecovered() {
	mb.mutFailing.Lock()
	defer mb.mutFailing.Unlock()

	if !mb.failing {
		return
	}

	mb.failing = false
	log.Info("sink available again", "sink", mb.sink.Name(), "queued", mb.queue.Len())
}

func (mb *metricsBatcher) isFailing() bool {
	mb.mutFailing.Lock()
	defer mb.mutFailing.Unlock()

	return mb.failing
}

// nextInterval returns the fast interval while a full batch is still waiting
func (mb *metricsBatcher) nextInterval() time.Duration {
	if mb.queue.Len() >= mb.batchSize {
		return mb.fastInterval
	}

	return mb.idleInterval
}

// Run consumes the events and flushes the queue until the context is done
func (mb *metricsBatcher) Run(ctx context.Context, events <-chan common.ValueEvent) {
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		mb.Consume(ctx, events)
	}()

	log.Debug("metrics batcher started", "sink", mb.sink.Name(), "batch size", mb.batchSize)
	for {
		mb.Flush(ctx)
		if !commonGo.SleepContext(ctx, mb.nextInterval()) {
			break
		}
	}

	wg.Wait()
	log.Debug("metrics batcher stopped", "sink", mb.sink.Name(), "queued", mb.queue.Len())
}

// IsInterfaceNil returns true if the value under the interface is nil
func (mb *metricsBatcher) IsInterfaceNil() bool {
	return mb == nil
}

func isPermanent(err error) bool {
	var classified interface{ Permanent() bool }
	if errors.As(err, &classified) {
		return classified.Permanent()
	}

	return false
}
