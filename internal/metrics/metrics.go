package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
)

// Metrics holds the Prometheus instruments for one relay node. It satisfies
// the registry metrics hook and the storage observation hook.
type Metrics struct {
	reg *prometheus.Registry

	connsAdmitted prometheus.Counter
	connsRemoved  prometheus.Counter
	connsActive   prometheus.Gauge
	channels      prometheus.Gauge
	deliveries    *prometheus.CounterVec
	evictions     prometheus.Counter

	storeWrite  prometheus.Histogram
	storeRead   prometheus.Histogram
	storeCommit prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.connsAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay", Name: "connections_admitted_total",
		Help: "Connections admitted since start.",
	})
	m.connsRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay", Name: "connections_removed_total",
		Help: "Connections removed since start.",
	})
	m.connsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay", Name: "connections_active",
		Help: "Currently registered connections.",
	})
	m.channels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay", Name: "channels_active",
		Help: "Channels with at least one subscriber.",
	})
	m.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay", Name: "deliveries_total",
		Help: "Per-recipient delivery outcomes.",
	}, []string{"status"})
	m.evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relay", Name: "evictions_total",
		Help: "Connections evicted by the liveness monitor.",
	})
	m.storeWrite = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay", Subsystem: "store", Name: "write_seconds",
		Help:    "Store write latency.",
		Buckets: prometheus.DefBuckets,
	})
	m.storeRead = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay", Subsystem: "store", Name: "read_seconds",
		Help:    "Store read latency.",
		Buckets: prometheus.DefBuckets,
	})
	m.storeCommit = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay", Subsystem: "store", Name: "commit_seconds",
		Help:    "Store batch commit latency.",
		Buckets: prometheus.DefBuckets,
	})
	m.reg.MustRegister(
		m.connsAdmitted, m.connsRemoved, m.connsActive, m.channels,
		m.deliveries, m.evictions,
		m.storeWrite, m.storeRead, m.storeCommit,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry metrics hook.

func (m *Metrics) ConnAdmitted(total int) {
	m.connsAdmitted.Inc()
	m.connsActive.Set(float64(total))
}

func (m *Metrics) ConnRemoved(total int) {
	m.connsRemoved.Inc()
	m.connsActive.Set(float64(total))
}

func (m *Metrics) ChannelGauge(total int) { m.channels.Set(float64(total)) }

func (m *Metrics) Delivered(status registry.DeliveryStatus) {
	m.deliveries.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) Evicted() { m.evictions.Inc() }

// Storage observation hook.

func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.storeWrite.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storeRead.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.storeCommit.Observe(elapsed.Seconds())
}
