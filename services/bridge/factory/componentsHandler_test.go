package factory

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/config"
	"github.com/iulianpascalau/psu-bridge/services/bridge/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(t *testing.T, address string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Instrument.Address = address
	cfg.Instrument.TimeoutInMilliseconds = 500
	cfg.API.ListenAddress = "127.0.0.1:0"
	cfg.Queue.Directory = t.TempDir()

	return cfg
}

func startInstrument(t *testing.T) *testsCommon.FakeInstrument {
	instrument, err := testsCommon.NewFakeInstrument()
	require.NoError(t, err)
	t.Cleanup(instrument.Close)

	return instrument
}

func TestNewComponentsHandler(t *testing.T) {
	t.Parallel()

	t.Run("unreachable instrument should error", func(t *testing.T) {
		t.Parallel()

		instrument := startInstrument(t)
		address := instrument.Address()
		instrument.Close()

		handler, err := NewComponentsHandler(createTestConfig(t, address), "bench")
		assert.Nil(t, handler)
		assert.Error(t, err)
	})
	t.Run("invalid sink should error", func(t *testing.T) {
		t.Parallel()

		instrument := startInstrument(t)
		cfg := createTestConfig(t, instrument.Address())
		cfg.InfluxDB.Enabled = true

		handler, err := NewComponentsHandler(cfg, "bench")
		assert.Nil(t, handler)
		assert.Error(t, err)
	})
	t.Run("should work", func(t *testing.T) {
		t.Parallel()

		instrument := startInstrument(t)

		handler, err := NewComponentsHandler(createTestConfig(t, instrument.Address()), "bench")
		assert.NotNil(t, handler)
		assert.Nil(t, err)

		handler.Close()
	})
}

func TestComponentsHandlerMethods(t *testing.T) {
	t.Parallel()

	sinkServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer sinkServer.Close()

	instrument := startInstrument(t)
	cfg := createTestConfig(t, instrument.Address())
	cfg.HTTP.Enabled = true
	cfg.HTTP.URL = sinkServer.URL
	cfg.InfluxDB.Enabled = true
	cfg.InfluxDB.URL = sinkServer.URL
	cfg.InfluxDB.Org = "lab"
	cfg.InfluxDB.Bucket = "psu"
	cfg.Queue.Backend = config.QueueBackendSQLite

	handler, err := NewComponentsHandler(cfg, "bench")
	require.NoError(t, err)
	require.Len(t, handler.pipelines, 2)

	require.NoError(t, handler.Start())
	require.NoError(t, handler.Start())

	assert.Equal(t, "*channels.Registry", fmt.Sprintf("%T", handler.GetRegistry()))
	assert.Equal(t, "*store.variableTable", fmt.Sprintf("%T", handler.GetTable()))
	assert.Equal(t, "*poller.instrumentPoller", fmt.Sprintf("%T", handler.GetPoller()))
	assert.Equal(t, "*api.server", fmt.Sprintf("%T", handler.GetServer()))
	assert.NotNil(t, handler.GetCollectors())
	assert.NotEqual(t, "127.0.0.1:0", handler.GetServer().Address())

	assert.Eventually(t, func() bool {
		value, errGet := handler.GetTable().Get("IDN")
		return errGet == nil && !value.UpdatedAt.IsZero()
	}, 5*time.Second, 20*time.Millisecond)

	handler.Close()
	handler.Close()
}

func TestComponentsHandler_DisabledAPI(t *testing.T) {
	t.Parallel()

	instrument := startInstrument(t)
	cfg := createTestConfig(t, instrument.Address())
	cfg.API.Enabled = false

	handler, err := NewComponentsHandler(cfg, "bench")
	require.NoError(t, err)
	assert.Nil(t, handler.GetServer())
	assert.Empty(t, handler.pipelines)

	require.NoError(t, handler.Start())
	handler.Close()
}
