package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/config"
	"github.com/iulianpascalau/psu-bridge/services/bridge/factory"
	"github.com/iulianpascalau/psu-bridge/services/bridge/testsCommon"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/stretchr/testify/require"
)

var log = logger.GetOrCreate("e2e-test")

var linePattern = regexp.MustCompile(`^psu,host=e2e,channel=[1-4],metric=(voltage|current|vset|iset) value=[0-9.]+ [0-9]+$`)

type sinkRecorder struct {
	mut           sync.Mutex
	accepted      [][]string
	rejected      [][]string
	numFailures   int32
	failuresCount int32
}

func (sr *sinkRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != "bench" || password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		lines := strings.Split(string(body), "\n")

		sr.mut.Lock()
		defer sr.mut.Unlock()

		if atomic.AddInt32(&sr.failuresCount, 1) <= sr.numFailures {
			sr.rejected = append(sr.rejected, lines)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"maintenance"}`))
			return
		}

		sr.accepted = append(sr.accepted, lines)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (sr *sinkRecorder) batches() ([][]string, [][]string) {
	sr.mut.Lock()
	defer sr.mut.Unlock()

	return append([][]string{}, sr.accepted...), append([][]string{}, sr.rejected...)
}

func createConfig(instrumentAddress string, sinkURL string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Instrument.Address = instrumentAddress
	cfg.Instrument.TimeoutInMilliseconds = 1000
	cfg.Poller.SweepIntervalInMilliseconds = 50
	cfg.API.ListenAddress = "127.0.0.1:0"
	cfg.Batcher.BatchSize = 10
	cfg.Batcher.FastIntervalInMilliseconds = 20
	cfg.Batcher.IdleIntervalInMilliseconds = 100
	cfg.HTTP.Enabled = true
	cfg.HTTP.URL = sinkURL
	cfg.HTTP.Username = "bench"
	cfg.HTTP.Password = "secret"
	cfg.HTTP.TimeoutInSeconds = 2

	return cfg
}

func getPV(t *testing.T, baseURL string, name string) map[string]interface{} {
	resp, err := http.Get(baseURL + "/api/pvs/" + name)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pv map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&pv)
	require.NoError(t, err)

	return pv
}

func putPV(t *testing.T, baseURL string, name string, body string) int {
	req, err := http.NewRequest(http.MethodPut, baseURL+"/api/pvs/"+name, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp.StatusCode
}

func TestE2EFlow(t *testing.T) {
	log.Info("======== 1. Start the emulated power supply")
	instrument, err := testsCommon.NewFakeInstrument()
	require.NoError(t, err)
	defer instrument.Close()

	log.Info("======== 2. Start the metrics sink")
	recorder := &sinkRecorder{}
	sink := httptest.NewServer(recorder.handler(t))
	defer sink.Close()

	log.Info("======== 3. Start the bridge via componentsHandler")
	handler, err := factory.NewComponentsHandler(createConfig(instrument.Address(), sink.URL), "e2e")
	require.NoError(t, err)

	require.NoError(t, handler.Start())
	defer handler.Close()

	baseURL := fmt.Sprintf("http://%s", handler.GetServer().Address())

	log.Info("======== 4. Wait for the first batches to reach the sink")
	require.Eventually(t, func() bool {
		accepted, _ := recorder.batches()
		return len(accepted) >= 2
	}, 10*time.Second, 50*time.Millisecond)

	accepted, _ := recorder.batches()
	for _, batch := range accepted {
		require.Len(t, batch, 10)
		for _, line := range batch {
			require.Regexp(t, linePattern, line)
		}
	}

	log.Info("======== 5. Read process variables")
	pv := getPV(t, baseURL, "PS:CH1:VOLTAGE")
	require.Equal(t, 1.0, pv["value"])
	require.Equal(t, "V", pv["unit"])

	pv = getPV(t, baseURL, "PS:CH3:CURRENT")
	require.Equal(t, 0.3, pv["value"])

	pv = getPV(t, baseURL, "PS:IDN")
	require.Equal(t, "GW INSTEK,GPD-4303S,SN:EM123456,V1.00", pv["value"])

	log.Info("======== 6. Enable the output")
	require.Equal(t, http.StatusOK, putPV(t, baseURL, "PS:OUT", `{"value":1}`))
	require.Eventually(t, func() bool {
		return instrument.CountReceived("OUT1") == 1
	}, time.Second, 10*time.Millisecond)

	pv = getPV(t, baseURL, "PS:OUT")
	require.Equal(t, 1.0, pv["value"])
	require.Equal(t, true, pv["writable"])

	log.Info("======== 7. Rejected writes")
	require.Equal(t, http.StatusForbidden, putPV(t, baseURL, "PS:CH1:VSET", `{"value":1}`))
	require.Equal(t, http.StatusBadRequest, putPV(t, baseURL, "PS:OUT", `{"value":5}`))
	require.Equal(t, 0, instrument.CountReceived("OUT5"))

	log.Info("======== 8. The output status channel follows the instrument")
	require.Eventually(t, func() bool {
		value := getPV(t, baseURL, "OUTSTATUS")
		return value["value"] == 1.0
	}, 15*time.Second, 100*time.Millisecond)
}

func TestE2EFlowWithSinkOutage(t *testing.T) {
	log.Info("======== 1. Start the emulated power supply")
	instrument, err := testsCommon.NewFakeInstrument()
	require.NoError(t, err)
	defer instrument.Close()

	log.Info("======== 2. Start a metrics sink failing the first 3 requests")
	recorder := &sinkRecorder{
		numFailures: 3,
	}
	sink := httptest.NewServer(recorder.handler(t))
	defer sink.Close()

	log.Info("======== 3. Start the bridge via componentsHandler")
	cfg := createConfig(instrument.Address(), sink.URL)
	cfg.API.Enabled = false
	handler, err := factory.NewComponentsHandler(cfg, "e2e")
	require.NoError(t, err)

	require.NoError(t, handler.Start())
	defer handler.Close()

	log.Info("======== 4. Wait for the sink to recover")
	require.Eventually(t, func() bool {
		accepted, _ := recorder.batches()
		return len(accepted) >= 3
	}, 10*time.Second, 50*time.Millisecond)

	log.Info("======== 5. The retained batch was resent unchanged and nothing was sent twice")
	accepted, rejected := recorder.batches()
	require.Len(t, rejected, 3)
	require.Equal(t, rejected[0], rejected[1])
	require.Equal(t, rejected[0], rejected[2])
	require.Equal(t, rejected[0], accepted[0])

	seen := make(map[string]struct{})
	for _, batch := range accepted {
		for _, line := range batch {
			_, found := seen[line]
			require.False(t, found, "duplicated line %s", line)
			seen[line] = struct{}{}
		}
	}
}
