package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

/*
Crawl metrics

Observational only: nothing in the engine reads these values back. A fresh
Metrics value registers against the given registerer so tests can use
isolated registries.
*/

type Metrics struct {
	PagesFetched  prometheus.Counter
	BytesFetched  prometheus.Counter
	ErrorsByKind  *prometheus.CounterVec
	SkippedByKind *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	InFlight      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawlkit",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully.",
		}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawlkit",
			Name:      "bytes_fetched_total",
			Help:      "Body bytes fetched.",
		}),
		ErrorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawlkit",
			Name:      "errors_total",
			Help:      "Terminal errors by taxonomy kind.",
		}, []string{"kind"}),
		SkippedByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawlkit",
			Name:      "skipped_total",
			Help:      "URLs skipped silently, by reason.",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawlkit",
			Name:      "frontier_queue_depth",
			Help:      "Entries pending in the frontier.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawlkit",
			Name:      "in_flight_fetches",
			Help:      "Fetches currently in flight.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PagesFetched,
			m.BytesFetched,
			m.ErrorsByKind,
			m.SkippedByKind,
			m.QueueDepth,
			m.InFlight,
		)
	}
	return m
}

// NewNop returns unregistered metrics, for tests and library embedding.
func NewNop() *Metrics {
	return New(nil)
}
