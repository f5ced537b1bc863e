package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/iulianpascalau/psu-bridge/commonGo"
	"github.com/iulianpascalau/psu-bridge/services/bridge/api"
	"github.com/iulianpascalau/psu-bridge/services/bridge/batcher"
	"github.com/iulianpascalau/psu-bridge/services/bridge/channels"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/config"
	"github.com/iulianpascalau/psu-bridge/services/bridge/events"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	"github.com/iulianpascalau/psu-bridge/services/bridge/mqtt"
	"github.com/iulianpascalau/psu-bridge/services/bridge/poller"
	"github.com/iulianpascalau/psu-bridge/services/bridge/queue"
	"github.com/iulianpascalau/psu-bridge/services/bridge/reporter"
	"github.com/iulianpascalau/psu-bridge/services/bridge/store"
	"github.com/iulianpascalau/psu-bridge/services/bridge/transport"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("factory")

const mqttSubscriber = "mqtt"

type pipeline struct {
	batcher MetricsBatcher
	events  <-chan common.ValueEvent
}

type componentsHandler struct {
	registry      *channels.Registry
	table         VariableTable
	poller        InstrumentPoller
	collectors    *metrics.Collectors
	bus           EventBus
	server        Server
	bridge        Bridge
	bridgeEvents  <-chan common.ValueEvent
	pipelines     []pipeline
	closers       []closer
	sweepInterval time.Duration

	mutCancel sync.Mutex
	cancel    func()
	wg        sync.WaitGroup
}

// NewComponentsHandler creates a new components handler. Failing to open the instrument link is fatal.
func NewComponentsHandler(cfg config.Config, hostname string) (*componentsHandler, error) {
	tr, err := transport.Open(transport.ArgsLineTransport{
		Address:          cfg.Instrument.Address,
		BaudRate:         cfg.Instrument.BaudRate,
		Timeout:          time.Duration(cfg.Instrument.TimeoutInMilliseconds) * time.Millisecond,
		WriteTermination: cfg.Instrument.WriteTermination,
	})
	if err != nil {
		return nil, err
	}

	ch := &componentsHandler{
		registry:      channels.NewGPD4303SRegistry(),
		collectors:    metrics.NewCollectors(),
		sweepInterval: time.Duration(cfg.Poller.SweepIntervalInMilliseconds) * time.Millisecond,
		closers:       []closer{tr},
	}

	err = ch.createComponents(cfg, hostname, tr)
	if err != nil {
		ch.closeAll()
		return nil, err
	}

	return ch, nil
}

func (ch *componentsHandler) createComponents(cfg config.Config, hostname string, tr Transport) error {
	table, err := store.NewVariableTable(ch.registry, tr)
	if err != nil {
		return err
	}
	ch.table = table

	bus := events.NewEventBus(ch.collectors)
	ch.bus = bus

	ch.poller, err = poller.NewInstrumentPoller(poller.ArgsInstrumentPoller{
		Registry:     ch.registry,
		Transport:    tr,
		Table:        table,
		Publisher:    bus,
		Collectors:   ch.collectors,
		QueryTimeout: time.Duration(cfg.Instrument.TimeoutInMilliseconds) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	sinks, err := createSinks(cfg)
	for _, sink := range sinks {
		ch.closers = append(ch.closers, sink)
	}
	if err != nil {
		return err
	}

	for _, s := range sinks {
		err = ch.createPipeline(cfg, hostname, s)
		if err != nil {
			return err
		}
	}

	if cfg.MQTT.Enabled {
		err = ch.createBridge(cfg, table)
		if err != nil {
			return err
		}
	}

	if cfg.API.Enabled {
		ch.server, err = api.NewServer(api.ArgsWebServer{
			ListenAddress:  cfg.API.ListenAddress,
			Prefix:         cfg.PV.Prefix,
			Registry:       ch.registry,
			Table:          table,
			Reader:         ch.poller,
			Collectors:     ch.collectors,
			GeneralHandler: api.CORSMiddleware,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

type sinkWithTimeout struct {
	batcher.Sink
	timeout time.Duration
}

func createSinks(cfg config.Config) ([]sinkWithTimeout, error) {
	sinks := make([]sinkWithTimeout, 0, 2)
	if cfg.HTTP.Enabled {
		sink, err := reporter.NewHTTPSink(reporter.ArgsHTTPSink{
			URL:                cfg.HTTP.URL,
			Username:           cfg.HTTP.Username,
			Password:           cfg.HTTP.Password,
			Timeout:            time.Duration(cfg.HTTP.TimeoutInSeconds) * time.Second,
			InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sinkWithTimeout{Sink: sink, timeout: time.Duration(cfg.HTTP.TimeoutInSeconds) * time.Second})
	}

	if cfg.InfluxDB.Enabled {
		sink, err := reporter.NewInfluxSink(reporter.ArgsInfluxSink{
			URL:                cfg.InfluxDB.URL,
			Token:              cfg.InfluxDB.Token,
			Org:                cfg.InfluxDB.Org,
			Bucket:             cfg.InfluxDB.Bucket,
			Timeout:            time.Duration(cfg.InfluxDB.TimeoutInSeconds) * time.Second,
			InsecureSkipVerify: cfg.InfluxDB.InsecureSkipVerify,
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sinkWithTimeout{Sink: sink, timeout: time.Duration(cfg.InfluxDB.TimeoutInSeconds) * time.Second})
	}

	return sinks, nil
}

func createQueue(cfg config.QueueConfig, sinkName string) (batcher.OutboundQueue, error) {
	if cfg.Backend != config.QueueBackendSQLite {
		return queue.NewMemQueue(cfg.MaxQueueLength), nil
	}

	return queue.NewSQLiteQueue(filepath.Join(cfg.Directory, fmt.Sprintf("outbound-%s.db", sinkName)), cfg.MaxQueueLength)
}

func (ch *componentsHandler) createPipeline(cfg config.Config, hostname string, sink sinkWithTimeout) error {
	q, err := createQueue(cfg.Queue, sink.Name())
	if err != nil {
		return err
	}
	ch.closers = append(ch.closers, q)

	mb, err := batcher.NewMetricsBatcher(batcher.ArgsMetricsBatcher{
		Host:         hostname,
		Registry:     ch.registry,
		Queue:        q,
		Sink:         sink.Sink,
		Collectors:   ch.collectors,
		BatchSize:    cfg.Batcher.BatchSize,
		FastInterval: time.Duration(cfg.Batcher.FastIntervalInMilliseconds) * time.Millisecond,
		IdleInterval: time.Duration(cfg.Batcher.IdleIntervalInMilliseconds) * time.Millisecond,
		FlushTimeout: sink.timeout,
	})
	if err != nil {
		return err
	}

	ch.pipelines = append(ch.pipelines, pipeline{
		batcher: mb,
		events:  ch.bus.Subscribe("batcher-"+sink.Name(), 0),
	})
	log.Debug("metrics pipeline created", "sink", sink.Name(), "queue", cfg.Queue.Backend)

	return nil
}

func (ch *componentsHandler) createBridge(cfg config.Config, writer mqtt.WriteRequester) error {
	bridge, err := mqtt.NewMQTTBridge(mqtt.ArgsMQTTBridge{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
		Writer:      writer,
		Collectors:  ch.collectors,
	})
	if err != nil {
		return err
	}

	ch.bridge = bridge
	ch.bridgeEvents = ch.bus.Subscribe(mqttSubscriber, 0)

	return nil
}

// GetRegistry returns the channel registry
func (ch *componentsHandler) GetRegistry() *channels.Registry {
	return ch.registry
}

// GetTable returns the shared variable table
func (ch *componentsHandler) GetTable() VariableTable {
	return ch.table
}

// GetPoller returns the instrument poller
func (ch *componentsHandler) GetPoller() InstrumentPoller {
	return ch.poller
}

// GetCollectors returns the process metrics
func (ch *componentsHandler) GetCollectors() *metrics.Collectors {
	return ch.collectors
}

// GetServer returns the server component, nil if the web surface is disabled
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start starts the inner components
func (ch *componentsHandler) Start() error {
	ch.mutCancel.Lock()
	defer ch.mutCancel.Unlock()

	if ch.cancel != nil {
		return nil
	}

	if ch.server != nil {
		err := ch.server.Start()
		if err != nil {
			return err
		}
	}

	var ctx context.Context
	ctx, ch.cancel = context.WithCancel(context.Background())

	for _, p := range ch.pipelines {
		ch.startWorker(func() {
			p.batcher.Run(ctx, p.events)
		})
	}

	if !check.IfNil(ch.bridge) {
		err := ch.bridge.Start()
		if err != nil {
			log.Error("mqtt bridge disabled", "error", err)
		} else {
			ch.startWorker(func() {
				ch.bridge.Consume(ctx, ch.bridgeEvents)
			})
		}
	}

	commonGo.CronJobStarter(ctx, ch.poller.Process, ch.sweepInterval)

	return nil
}

func (ch *componentsHandler) startWorker(handler func()) {
	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		handler()
	}()
}

// Close closes the inner components
func (ch *componentsHandler) Close() {
	ch.mutCancel.Lock()
	defer ch.mutCancel.Unlock()

	if ch.cancel != nil {
		ch.cancel()
		ch.cancel = nil
	}

	if ch.server != nil {
		err := ch.server.Close()
		log.LogIfError(err)
	}

	ch.wg.Wait()

	if !check.IfNil(ch.bridge) {
		err := ch.bridge.Close()
		log.LogIfError(err)
	}

	ch.closeAll()
}

func (ch *componentsHandler) closeAll() {
	if !check.IfNil(ch.bus) {
		ch.bus.Close()
	}

	for i := len(ch.closers) - 1; i >= 0; i-- {
		err := ch.closers[i].Close()
		log.LogIfError(err)
	}
	ch.closers = nil
}
