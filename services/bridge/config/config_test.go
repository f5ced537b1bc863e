package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestConfig(t *testing.T) {
	t.Parallel()

	testString := `
[Instrument]
    Address = "TCPIP::10.0.0.5::1026::SOCKET"
    BaudRate = 115200
    TimeoutInMilliseconds = 2000
    WriteTermination = "\r\n"

[PV]
    Prefix = "$hostname:psu:"

[Poller]
    SweepIntervalInMilliseconds = 250

[API]
    Enabled = true
    ListenAddress = "127.0.0.1:9090"

[Queue]
    Backend = "sqlite"
    Directory = "/var/lib/psu-bridge"
    MaxQueueLength = 100000

[Batcher]
    BatchSize = 50
    FastIntervalInMilliseconds = 200
    IdleIntervalInMilliseconds = 5000

[HTTP]
    Enabled = true
    URL = "https://metrics.lab/api/v2/write"
    Username = "bench"
    TimeoutInSeconds = 3
    InsecureSkipVerify = true

[InfluxDB]
    Enabled = true
    URL = "http://influx:8086"
    Org = "lab"
    Bucket = "psu"
    TimeoutInSeconds = 5

[MQTT]
    Enabled = true
    Broker = "tcp://broker:1883"
    ClientID = "bench-1"
    TopicPrefix = "lab/psu"
    QoS = 1
`

	expectedCfg := Config{
		Instrument: InstrumentConfig{
			Address:               "TCPIP::10.0.0.5::1026::SOCKET",
			BaudRate:              115200,
			TimeoutInMilliseconds: 2000,
			WriteTermination:      "\r\n",
		},
		PV: PVConfig{
			Prefix: "$hostname:psu:",
		},
		Poller: PollerConfig{
			SweepIntervalInMilliseconds: 250,
		},
		API: APIConfig{
			Enabled:       true,
			ListenAddress: "127.0.0.1:9090",
		},
		Queue: QueueConfig{
			Backend:        QueueBackendSQLite,
			Directory:      "/var/lib/psu-bridge",
			MaxQueueLength: 100000,
		},
		Batcher: BatcherConfig{
			BatchSize:                  50,
			FastIntervalInMilliseconds: 200,
			IdleIntervalInMilliseconds: 5000,
		},
		HTTP: HTTPSinkConfig{
			Enabled:            true,
			URL:                "https://metrics.lab/api/v2/write",
			Username:           "bench",
			TimeoutInSeconds:   3,
			InsecureSkipVerify: true,
		},
		InfluxDB: InfluxDBConfig{
			Enabled:          true,
			URL:              "http://influx:8086",
			Org:              "lab",
			Bucket:           "psu",
			TimeoutInSeconds: 5,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://broker:1883",
			ClientID:    "bench-1",
			TopicPrefix: "lab/psu",
			QoS:         1,
		},
	}

	cfg := Config{}

	err := toml.Unmarshal([]byte(testString), &cfg)
	assert.Nil(t, err)
	assert.Equal(t, expectedCfg, cfg)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file should return the defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), "bench")
		require.NoError(t, err)

		expected := DefaultConfig()
		assert.Equal(t, expected, *cfg)
	})
	t.Run("partial document keeps the defaults of the missing keys", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.toml", `
[Instrument]
    Address = "/dev/ttyACM0"

[PV]
    Prefix = "$hostname:"
`)
		cfg, err := LoadConfig(path, "bench")
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", cfg.Instrument.Address)
		assert.Equal(t, 9600, cfg.Instrument.BaudRate)
		assert.Equal(t, uint32(5000), cfg.Instrument.TimeoutInMilliseconds)
		assert.Equal(t, "BENCH:", cfg.PV.Prefix)
		assert.Equal(t, 100, cfg.Batcher.BatchSize)
		assert.Equal(t, uint32(1000), cfg.Poller.SweepIntervalInMilliseconds)
		assert.Equal(t, QueueBackendMemory, cfg.Queue.Backend)
	})
	t.Run("malformed document should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.toml", "[Instrument\nAddress = ")
		cfg, err := LoadConfig(path, "bench")
		assert.Nil(t, cfg)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
	t.Run("enabled HTTP sink without URL should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.toml", "[HTTP]\nEnabled = true\n")
		cfg, err := LoadConfig(path, "bench")
		assert.Nil(t, cfg)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.Contains(t, err.Error(), "URL")
	})
	t.Run("unknown queue backend should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.toml", "[Queue]\nBackend = \"redis\"\n")
		_, err := LoadConfig(path, "bench")
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}

func TestLoadConfig_Legacy(t *testing.T) {
	t.Parallel()

	t.Run("should read the section list", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.yaml", `
- psu:
    port: /dev/ttyUSB1
- epics:
    prefix: "$HOSTNAME:ps:"
- http:
    enable: true
    url: https://metrics.lab/write
    username: bench
    password: secret
`)
		cfg, err := LoadConfig(path, "lab7")
		require.NoError(t, err)
		assert.Equal(t, "ASRL/dev/ttyUSB1::INSTR", cfg.Instrument.Address)
		assert.Equal(t, "LAB7:PS:", cfg.PV.Prefix)
		assert.True(t, cfg.HTTP.Enabled)
		assert.Equal(t, "https://metrics.lab/write", cfg.HTTP.URL)
		assert.Equal(t, "bench", cfg.HTTP.Username)
		assert.Equal(t, "secret", cfg.HTTP.Password)
		assert.True(t, cfg.HTTP.InsecureSkipVerify)
	})
	t.Run("empty sections use the defaults", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.yml", `
- psu: {}
- epics: {}
- http:
    enable: false
`)
		cfg, err := LoadConfig(path, "lab7")
		require.NoError(t, err)
		assert.Equal(t, "ASRL/dev/ttyUSB0::INSTR", cfg.Instrument.Address)
		assert.Equal(t, "PS:", cfg.PV.Prefix)
		assert.False(t, cfg.HTTP.Enabled)
	})
	t.Run("enabled http section without url should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.yaml", "- http:\n    enable: true\n")
		cfg, err := LoadConfig(path, "lab7")
		assert.Nil(t, cfg)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
	t.Run("malformed yaml should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "config.yaml", "- psu: [unclosed\n")
		_, err := LoadConfig(path, "lab7")
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}

func TestResolvePrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PS:", ResolvePrefix("PS:", "bench"))
	assert.Equal(t, "BENCH:PS:", ResolvePrefix("$hostname:ps:", "bench"))
	assert.Equal(t, "BENCH:PS:", ResolvePrefix("$HostName:PS:", "Bench"))
	assert.Equal(t, "", ResolvePrefix("", "bench"))
}

func TestShortHostname(t *testing.T) {
	t.Parallel()

	hostname := ShortHostname()
	assert.NotEmpty(t, hostname)
	assert.NotContains(t, hostname, ".")
}

func TestApplySecrets(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HTTP.Username = "from-file"
	cfg.HTTP.Password = "from-file"

	cfg.ApplySecrets(map[string]string{
		EnvHTTPPassword: "p4ss",
		EnvInfluxToken:  "t0ken",
		EnvMQTTPassword: "mqtt",
	})

	assert.Equal(t, "from-file", cfg.HTTP.Username)
	assert.Equal(t, "p4ss", cfg.HTTP.Password)
	assert.Equal(t, "t0ken", cfg.InfluxDB.Token)
	assert.Equal(t, "mqtt", cfg.MQTT.Password)
}
