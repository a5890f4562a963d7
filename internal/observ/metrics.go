package observ

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like
// without tripping duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	QuotaDecisions *prometheus.CounterVec
	DelegatedCalls *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorvault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorvault_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		QuotaDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorvault_quota_decisions_total",
				Help: "Quota gate outcomes by metric and decision (admit, deny, error)",
			},
			[]string{"metric", "decision"},
		),
		DelegatedCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorvault_delegated_call_duration_seconds",
				Help:    "Duration of delegated database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.QuotaDecisions,
		m.DelegatedCalls,
	)
	return m
}

// ObserveQuota is safe on a nil receiver.
func (m *Metrics) ObserveQuota(metric, decision string) {
	if m == nil {
		return
	}
	m.QuotaDecisions.WithLabelValues(metric, decision).Inc()
}

// ObserveDelegated is safe on a nil receiver.
func (m *Metrics) ObserveDelegated(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DelegatedCalls.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
