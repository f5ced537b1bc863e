package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "psu_bridge"

// Flush results used as label values
const (
	FlushOK        = "ok"
	FlushTransient = "transient"
	FlushRejected  = "rejected"
)

// Drop reasons used as label values
const (
	DropOverflow = "overflow"
	DropRejected = "rejected"
)

// Collectors groups the process metrics exposed on the /metrics route. Each instance owns its registry so
// several instances can live in the same process (tests, multiple handlers).
type Collectors struct {
	registry *prometheus.Registry

	ChannelUpdates *prometheus.CounterVec
	QueryErrors    *prometheus.CounterVec
	ParseErrors    *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	WriteRequests  *prometheus.CounterVec
	DroppedEvents  *prometheus.CounterVec
	QueueLength    *prometheus.GaugeVec
	Flushes        *prometheus.CounterVec
	DroppedLines   *prometheus.CounterVec
}

// NewCollectors creates and registers all collectors
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		ChannelUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_updates_total",
			Help:      "Successful channel reads published to the variable table.",
		}, []string{"channel"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_query_errors_total",
			Help:      "Instrument queries that timed out or failed with an I/O error.",
		}, []string{"channel"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_parse_errors_total",
			Help:      "Instrument replies that could not be parsed.",
		}, []string{"channel"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_query_duration_seconds",
			Help:      "Round trip time of instrument queries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"channel"}),
		WriteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_requests_total",
			Help:      "Write requests received by the server-facing layer.",
		}, []string{"channel", "accepted"}),
		DroppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Value events dropped because a subscriber buffer was full.",
		}, []string{"subscriber"}),
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_queue_length",
			Help:      "Lines waiting in the outbound queue.",
		}, []string{"sink"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Batch flush attempts by result.",
		}, []string{"sink", "result"}),
		DroppedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_lines_total",
			Help:      "Queued lines discarded by the overflow policy or rejected by the sink.",
		}, []string{"sink", "reason"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ChannelUpdates,
		c.QueryErrors,
		c.ParseErrors,
		c.QueryDuration,
		c.WriteRequests,
		c.DroppedEvents,
		c.QueueLength,
		c.Flushes,
		c.DroppedLines,
	)

	return c
}

// Gatherer returns the registry holding all collectors
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *Collectors) IsInterfaceNil() bool {
	return c == nil
}
