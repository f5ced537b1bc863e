package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("mqtt")

const (
	maxQoS                = 2
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 500
	setSuffix             = "set"
	statusTopic           = "status"
	onlinePayload         = "online"
	offlinePayload        = "offline"
)

// ArgsMQTTBridge defines the arguments needed to create the MQTT bridge
type ArgsMQTTBridge struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	Writer         WriteRequester
	Collectors     *metrics.Collectors
}

type mqttBridge struct {
	client         brokerClient
	topicPrefix    string
	qos            byte
	connectTimeout time.Duration
	writer         WriteRequester
	collectors     *metrics.Collectors

	mutSubscribed sync.Mutex
	subscribed    bool
}

// NewMQTTBridge creates the component publishing value events on the broker and accepting write commands
// on the <prefix>/<channel>/set topics
func NewMQTTBridge(args ArgsMQTTBridge) (*mqttBridge, error) {
	err := checkArgs(args)
	if err != nil {
		return nil, err
	}

	b := newBridge(args)
	b.client = pahomqtt.NewClient(b.clientOptions(args))

	return b, nil
}

func checkArgs(args ArgsMQTTBridge) error {
	if len(args.Broker) == 0 {
		return errEmptyBroker
	}
	if len(strings.Trim(args.TopicPrefix, "/")) == 0 {
		return errEmptyTopicPrefix
	}
	if args.QoS > maxQoS {
		return fmt.Errorf("%w: %d", errInvalidQoS, args.QoS)
	}
	if check.IfNil(args.Writer) {
		return errNilWriteRequester
	}
	if check.IfNil(args.Collectors) {
		return errNilCollectors
	}

	return nil
}

func newBridge(args ArgsMQTTBridge) *mqttBridge {
	connectTimeout := args.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	return &mqttBridge{
		topicPrefix:    strings.Trim(args.TopicPrefix, "/"),
		qos:            args.QoS,
		connectTimeout: connectTimeout,
		writer:         args.Writer,
		collectors:     args.Collectors,
	}
}

func (b *mqttBridge) clientOptions(args ArgsMQTTBridge) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(args.Broker)
	opts.SetClientID(args.ClientID)
	if len(args.Username) > 0 {
		opts.SetUsername(args.Username)
		opts.SetPassword(args.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(b.connectTimeout)
	opts.SetWill(b.topic(statusTopic), offlinePayload, b.qos, true)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		b.onReconnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	return opts
}

// Start connects to the broker and subscribes to the write topics
func (b *mqttBridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(b.connectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, b.connectTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, token.Error())
	}

	err := b.subscribe()
	if err != nil {
		return err
	}

	b.publish(b.topic(statusTopic), onlinePayload)
	log.Info("mqtt bridge connected", "topic prefix", b.topicPrefix)

	return nil
}

// onReconnect restores the subscription after the client reconnected on its own
func (b *mqttBridge) onReconnect() {
	b.mutSubscribed.Lock()
	wasSubscribed := b.subscribed
	b.mutSubscribed.Unlock()
	if !wasSubscribed {
		return
	}

	err := b.subscribe()
	if err != nil {
		log.Warn("could not restore mqtt subscription", "error", err)
		return
	}

	b.publish(b.topic(statusTopic), onlinePayload)
	log.Info("mqtt bridge reconnected")
}

func (b *mqttBridge) subscribe() error {
	topic := b.topic("+", setSuffix)
	token := b.client.Subscribe(topic, b.qos, b.handleMessage)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: subscribe to %s timed out", ErrConnectionFailed, topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("%w: subscribe to %s: %w", ErrConnectionFailed, topic, token.Error())
	}

	b.mutSubscribed.Lock()
	b.subscribed = true
	b.mutSubscribed.Unlock()

	return nil
}

func (b *mqttBridge) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	id, ok := b.channelFromSetTopic(msg.Topic())
	if !ok {
		return
	}

	err := b.applyWrite(id, msg.Payload())
	if err != nil {
		log.Warn("mqtt write rejected", "channel", id, "payload", string(msg.Payload()), "error", err)
	}
}

func (b *mqttBridge) applyWrite(id string, payload []byte) error {
	value, err := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
	if err != nil {
		b.collectors.WriteRequests.WithLabelValues(id, "false").Inc()
		return fmt.Errorf("%w: %s", errInvalidPayload, err.Error())
	}

	accepted, err := b.writer.WriteRequest(id, value)
	b.collectors.WriteRequests.WithLabelValues(id, strconv.FormatBool(accepted)).Inc()
	if err != nil {
		return err
	}

	b.publish(b.topic(id), common.FlagValue(value).String())

	return nil
}

func (b *mqttBridge) channelFromSetTopic(topic string) (string, bool) {
	prefix := b.topicPrefix + "/"
	suffix := "/" + setSuffix
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, suffix) {
		return "", false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), suffix)

	return id, len(id) > 0 && !strings.Contains(id, "/")
}

// Consume publishes every value event as a retained message until the context is done or the channel is closed
func (b *mqttBridge) Consume(ctx context.Context, events <-chan common.ValueEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			b.publish(b.topic(event.ID), event.Value.String())
		}
	}
}

func (b *mqttBridge) publish(topic string, payload string) {
	if !b.client.IsConnected() {
		log.Trace("mqtt publish skipped", "topic", topic, "error", ErrNotConnected)
		return
	}

	token := b.client.Publish(topic, b.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Debug("mqtt publish timed out", "topic", topic)
		return
	}
	log.LogIfError(token.Error(), "topic", topic)
}

func (b *mqttBridge) topic(parts ...string) string {
	return b.topicPrefix + "/" + strings.Join(parts, "/")
}

// Close publishes the offline status and disconnects
func (b *mqttBridge) Close() error {
	if b.client.IsConnected() {
		b.publish(b.topic(statusTopic), offlinePayload)
		b.client.Disconnect(disconnectQuiesceMs)
	}

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (b *mqttBridge) IsInterfaceNil() bool {
	return b == nil
}
