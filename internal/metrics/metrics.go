// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the ledger reports.
type Metrics struct {
	registry *prometheus.Registry

	TransfersTotal   *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	IdempotencyHits  *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates a Metrics with its own registry so tests stay isolated.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transfers_total",
			Help:      "Transfer outcomes by kind and terminal status.",
		}, []string{"kind", "status"}),
		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "transfer_duration_seconds",
			Help:      "End-to-end transfer latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		IdempotencyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "idempotency_hits_total",
			Help:      "Requests short-circuited by a cached response, by layer.",
		}, []string{"layer"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.TransfersTotal,
		m.TransferDuration,
		m.IdempotencyHits,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// ObserveTransfer records one finished transfer attempt.
func (m *Metrics) ObserveTransfer(kind, status string, start time.Time) {
	m.TransfersTotal.WithLabelValues(kind, status).Inc()
	m.TransferDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware instruments every request with count and latency. The route
// template (not the raw path) is used to bound label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
