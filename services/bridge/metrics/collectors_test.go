package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectors(t *testing.T) {
	t.Parallel()

	first := NewCollectors()
	second := NewCollectors()
	assert.False(t, first.IsInterfaceNil())

	first.QueryErrors.WithLabelValues("CH1:VOLTAGE").Inc()
	first.Flushes.WithLabelValues("http", FlushOK).Add(2)
	first.QueueLength.WithLabelValues("http").Set(150)

	assert.Equal(t, float64(1), testutil.ToFloat64(first.QueryErrors.WithLabelValues("CH1:VOLTAGE")))
	assert.Equal(t, float64(0), testutil.ToFloat64(second.QueryErrors.WithLabelValues("CH1:VOLTAGE")))
	assert.Equal(t, float64(2), testutil.ToFloat64(first.Flushes.WithLabelValues("http", FlushOK)))
	assert.Equal(t, float64(150), testutil.ToFloat64(first.QueueLength.WithLabelValues("http")))

	families, err := first.Gatherer().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["psu_bridge_channel_query_errors_total"])
	assert.True(t, names["psu_bridge_flushes_total"])
	assert.True(t, names["psu_bridge_outbound_queue_length"])
}
