package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/metrics"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	m.PagesFetched.Inc()
	m.BytesFetched.Add(1024)
	m.ErrorsByKind.WithLabelValues("timeout").Inc()
	m.SkippedByKind.WithLabelValues("out_of_scope").Inc()
	m.QueueDepth.Set(3)
	m.InFlight.Set(2)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, want := range []string{
		"crawlkit_pages_fetched_total",
		"crawlkit_bytes_fetched_total",
		"crawlkit_errors_total",
		"crawlkit_skipped_total",
		"crawlkit_frontier_queue_depth",
		"crawlkit_in_flight_fetches",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestCountersAccumulate(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.PagesFetched.Inc()
	m.PagesFetched.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched))

	m.ErrorsByKind.WithLabelValues("http_error").Inc()
	m.ErrorsByKind.WithLabelValues("http_error").Inc()
	m.ErrorsByKind.WithLabelValues("timeout").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsByKind.WithLabelValues("http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsByKind.WithLabelValues("timeout")))

	m.QueueDepth.Set(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueueDepth))
}

func TestNewNopIsUsableWithoutRegistry(t *testing.T) {
	m := metrics.NewNop()
	m.PagesFetched.Inc()
	m.SkippedByKind.WithLabelValues("queue_full").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched))
}

func TestTwoInstancesUseIsolatedRegistries(t *testing.T) {
	first := metrics.New(prometheus.NewRegistry())
	second := metrics.New(prometheus.NewRegistry())

	first.PagesFetched.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.PagesFetched))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.PagesFetched))
}
