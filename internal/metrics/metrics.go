package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory_sync"

// Metrics holds the collectors of the sync engine and the alert pipeline.
// Every instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotsApplied *prometheus.CounterVec
	SnapshotErrors   *prometheus.CounterVec
	CachedItems      *prometheus.GaugeVec
	AlertsRaised     *prometheus.CounterVec
	AlertsDispatched *prometheus.CounterVec
	AlertQueueDepth  prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.SnapshotsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_applied_total",
			Help:      "Inventory snapshots installed in the local cache",
		},
		[]string{"location"},
	)
	m.SnapshotErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Snapshot deliveries that failed and left the cache unchanged",
		},
		[]string{"location"},
	)
	m.CachedItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_items",
			Help:      "Items in the installed snapshot",
		},
		[]string{"location"},
	)
	m.AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Low stock alerts produced by evaluation",
		},
		[]string{"location"},
	)
	m.AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dispatched_total",
			Help:      "Alert delivery attempts by outcome",
		},
		[]string{"status"},
	)
	m.AlertQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_queue_depth",
			Help:      "Alerts waiting for delivery",
		},
	)
	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	registry.MustRegister(
		m.SnapshotsApplied,
		m.SnapshotErrors,
		m.CachedItems,
		m.AlertsRaised,
		m.AlertsDispatched,
		m.AlertQueueDepth,
		m.HTTPRequests,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
