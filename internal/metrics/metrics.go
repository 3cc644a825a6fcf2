package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the fetch-cycle instrumentation on a dedicated
// registry so the /metrics endpoint only exposes what this daemon owns.
type Metrics struct {
	registry *prometheus.Registry

	FetchTotal     *prometheus.CounterVec
	FetchDuration  prometheus.Summary
	LastSuccessTS  prometheus.Gauge
	SnapshotGroups prometheus.Gauge
	SnapshotEvents prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loe",
		Name:      "fetch_total",
		Help:      "Schedule fetch cycles by result",
	}, []string{"result"})
	m.FetchDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "loe",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching and parsing the schedule",
	})
	m.LastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loe",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful fetch cycle",
	})
	m.SnapshotGroups = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loe",
		Name:      "snapshot_groups",
		Help:      "Groups present in the current snapshot",
	})
	m.SnapshotEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loe",
		Name:      "snapshot_events",
		Help:      "Resolved outage events for the configured group in the current snapshot",
	})

	m.registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.LastSuccessTS,
		m.SnapshotGroups,
		m.SnapshotEvents,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
