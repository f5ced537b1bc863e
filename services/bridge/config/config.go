package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/pelletier/go-toml/v2"
)

var log = logger.GetOrCreate("config")

const hostnameMacro = "$hostname"

// Secret keys read from the .env file
const (
	EnvHTTPUsername = "HTTP_USERNAME"
	EnvHTTPPassword = "HTTP_PASSWORD"
	EnvInfluxToken  = "INFLUX_TOKEN"
	EnvMQTTPassword = "MQTT_PASSWORD"
)

// Queue backends
const (
	QueueBackendMemory = "memory"
	QueueBackendSQLite = "sqlite"
)

// ErrInvalidConfig signals a malformed or inconsistent configuration document
var ErrInvalidConfig = errors.New("invalid configuration")

// InstrumentConfig defines the connection to the power supply
type InstrumentConfig struct {
	Address               string `toml:"Address"`
	BaudRate              int    `toml:"BaudRate"`
	TimeoutInMilliseconds uint32 `toml:"TimeoutInMilliseconds"`
	WriteTermination      string `toml:"WriteTermination"`
}

// PVConfig defines how the process variables are named
type PVConfig struct {
	Prefix string `toml:"Prefix"`
}

// PollerConfig defines the sweep pacing
type PollerConfig struct {
	SweepIntervalInMilliseconds uint32 `toml:"SweepIntervalInMilliseconds"`
}

// APIConfig defines the process variable web surface
type APIConfig struct {
	Enabled       bool   `toml:"Enabled"`
	ListenAddress string `toml:"ListenAddress"`
}

// QueueConfig defines the outbound queues, one per enabled sink
type QueueConfig struct {
	Backend        string `toml:"Backend"`
	Directory      string `toml:"Directory"`
	MaxQueueLength int    `toml:"MaxQueueLength"`
}

// BatcherConfig defines the batching and flush pacing
type BatcherConfig struct {
	BatchSize                  int    `toml:"BatchSize"`
	FastIntervalInMilliseconds uint32 `toml:"FastIntervalInMilliseconds"`
	IdleIntervalInMilliseconds uint32 `toml:"IdleIntervalInMilliseconds"`
}

// HTTPSinkConfig defines the line protocol HTTP endpoint
type HTTPSinkConfig struct {
	Enabled            bool   `toml:"Enabled"`
	URL                string `toml:"URL"`
	Username           string `toml:"Username"`
	Password           string `toml:"Password"`
	TimeoutInSeconds   uint32 `toml:"TimeoutInSeconds"`
	InsecureSkipVerify bool   `toml:"InsecureSkipVerify"`
}

// InfluxDBConfig defines the InfluxDB v2 endpoint
type InfluxDBConfig struct {
	Enabled            bool   `toml:"Enabled"`
	URL                string `toml:"URL"`
	Token              string `toml:"Token"`
	Org                string `toml:"Org"`
	Bucket             string `toml:"Bucket"`
	TimeoutInSeconds   uint32 `toml:"TimeoutInSeconds"`
	InsecureSkipVerify bool   `toml:"InsecureSkipVerify"`
}

// MQTTConfig defines the broker link
type MQTTConfig struct {
	Enabled     bool   `toml:"Enabled"`
	Broker      string `toml:"Broker"`
	ClientID    string `toml:"ClientID"`
	Username    string `toml:"Username"`
	Password    string `toml:"Password"`
	TopicPrefix string `toml:"TopicPrefix"`
	QoS         byte   `toml:"QoS"`
}

// Config maps to the config.toml file of the bridge
type Config struct {
	Instrument InstrumentConfig `toml:"Instrument"`
	PV         PVConfig         `toml:"PV"`
	Poller     PollerConfig     `toml:"Poller"`
	API        APIConfig        `toml:"API"`
	Queue      QueueConfig      `toml:"Queue"`
	Batcher    BatcherConfig    `toml:"Batcher"`
	HTTP       HTTPSinkConfig   `toml:"HTTP"`
	InfluxDB   InfluxDBConfig   `toml:"InfluxDB"`
	MQTT       MQTTConfig       `toml:"MQTT"`
}

// DefaultConfig returns the configuration used when no document is available
func DefaultConfig() Config {
	return Config{
		Instrument: InstrumentConfig{
			Address:               "/dev/ttyUSB0",
			BaudRate:              9600,
			TimeoutInMilliseconds: 5000,
			WriteTermination:      "\n",
		},
		PV: PVConfig{
			Prefix: "PS:",
		},
		Poller: PollerConfig{
			SweepIntervalInMilliseconds: 1000,
		},
		API: APIConfig{
			Enabled:       true,
			ListenAddress: ":8080",
		},
		Queue: QueueConfig{
			Backend:   QueueBackendMemory,
			Directory: "db",
		},
		Batcher: BatcherConfig{
			BatchSize:                  100,
			FastIntervalInMilliseconds: 100,
			IdleIntervalInMilliseconds: 2000,
		},
		HTTP: HTTPSinkConfig{
			TimeoutInSeconds:   10,
			InsecureSkipVerify: true,
		},
		InfluxDB: InfluxDBConfig{
			TimeoutInSeconds: 10,
		},
		MQTT: MQTTConfig{
			ClientID:    "psu-bridge",
			TopicPrefix: "psu",
		},
	}
}

// LoadConfig parses the configuration document. A missing or unreadable file yields the defaults.
// Documents with the .yaml or .yml extension are read in the legacy section-list layout.
func LoadConfig(path string, hostname string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		log.Warn("config file not available, running with defaults", "file", path, "error", err)
		return &cfg, cfg.resolve(hostname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeLegacy(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode config file '%s': %s", ErrInvalidConfig, path, err.Error())
	}

	err = cfg.resolve(hostname)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) resolve(hostname string) error {
	cfg.PV.Prefix = ResolvePrefix(cfg.PV.Prefix, hostname)

	return cfg.Validate()
}

// ResolvePrefix substitutes the $hostname macro and upper-cases the prefix
func ResolvePrefix(prefix string, hostname string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.ToLower(prefix), hostnameMacro, hostname))
}

// ShortHostname returns the host name without its domain
func ShortHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}

	return strings.Split(hostname, ".")[0]
}

// Validate checks the consistency of the configuration
func (cfg *Config) Validate() error {
	if len(cfg.Instrument.Address) == 0 {
		return fmt.Errorf("%w: empty instrument address", ErrInvalidConfig)
	}
	if cfg.HTTP.Enabled && len(cfg.HTTP.URL) == 0 {
		return fmt.Errorf("%w: HTTP section enabled but URL is not provided", ErrInvalidConfig)
	}
	if cfg.InfluxDB.Enabled && (len(cfg.InfluxDB.URL) == 0 || len(cfg.InfluxDB.Bucket) == 0) {
		return fmt.Errorf("%w: InfluxDB section enabled but URL or Bucket is not provided", ErrInvalidConfig)
	}
	if cfg.MQTT.Enabled && len(cfg.MQTT.Broker) == 0 {
		return fmt.Errorf("%w: MQTT section enabled but Broker is not provided", ErrInvalidConfig)
	}
	if cfg.Queue.Backend != QueueBackendMemory && cfg.Queue.Backend != QueueBackendSQLite {
		return fmt.Errorf("%w: unknown queue backend '%s'", ErrInvalidConfig, cfg.Queue.Backend)
	}
	if cfg.Batcher.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if cfg.Poller.SweepIntervalInMilliseconds == 0 {
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}

	return nil
}

// ApplySecrets overrides the credentials with the values found in the provided map
func (cfg *Config) ApplySecrets(secrets map[string]string) {
	override := func(target *string, key string) {
		value, found := secrets[key]
		if found {
			*target = value
		}
	}

	override(&cfg.HTTP.Username, EnvHTTPUsername)
	override(&cfg.HTTP.Password, EnvHTTPPassword)
	override(&cfg.InfluxDB.Token, EnvInfluxToken)
	override(&cfg.MQTT.Password, EnvMQTTPassword)
}
