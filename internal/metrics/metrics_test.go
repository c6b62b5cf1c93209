package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipeline(reg)
	require.NoError(t, err)

	m.Bars.WithLabelValues("BTC").Add(10)
	m.Signals.WithLabelValues("BTC", "ema_trend", "buy").Inc()
	m.LastCommitted.WithLabelValues("BTC").Set(1700000000)
	m.ChunkDuration.WithLabelValues("BTC").Observe(0.2)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.Bars.WithLabelValues("BTC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signals.WithLabelValues("BTC", "ema_trend", "buy")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastCommitted.WithLabelValues("BTC")))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["pipeline_bars_total"])
	assert.True(t, names["pipeline_chunk_duration_seconds"])
}

func TestNewPipeline_duplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipeline(reg)
	require.NoError(t, err)

	_, err = NewPipeline(reg)
	assert.Error(t, err)
}
