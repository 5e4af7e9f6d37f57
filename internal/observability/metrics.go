package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the aggregation and
// verification loops.
type Metrics struct {
	FetchCycles     prometheus.Counter
	AdapterFailures *prometheus.CounterVec // labels: source
	AlertsInFeed    prometheus.Gauge
	UnreadAlerts    prometheus.Gauge

	VerifyCycles    prometheus.Counter
	StatusChanges   prometheus.Counter
	GeocodeFailures prometheus.Counter
}

// NewMetrics creates and registers all collectors with the default
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardwatch",
			Name:      "fetch_cycles_total",
			Help:      "Total completed alert aggregation cycles.",
		}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazardwatch",
			Name:      "adapter_failures_total",
			Help:      "Total adapter fetch failures, by source.",
		}, []string{"source"}),
		AlertsInFeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazardwatch",
			Name:      "alerts_in_feed",
			Help:      "Alerts currently held by the aggregator.",
		}),
		UnreadAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazardwatch",
			Name:      "alerts_unread",
			Help:      "Unread alerts currently in the feed.",
		}),
		VerifyCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardwatch",
			Name:      "verify_cycles_total",
			Help:      "Total completed safety verification cycles.",
		}),
		StatusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardwatch",
			Name:      "status_changes_total",
			Help:      "Tracked-person status transitions written.",
		}),
		GeocodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardwatch",
			Name:      "geocode_failures_total",
			Help:      "Per-entity geocoding failures during verification.",
		}),
	}

	prometheus.MustRegister(
		m.FetchCycles,
		m.AdapterFailures,
		m.AlertsInFeed,
		m.UnreadAlerts,
		m.VerifyCycles,
		m.StatusChanges,
		m.GeocodeFailures,
	)

	return m
}
