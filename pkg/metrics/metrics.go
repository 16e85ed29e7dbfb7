package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	// Backend round-trip metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Flow metrics
	FlowErrors *prometheus.CounterVec
}

// New creates and registers all application metrics on a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests issued to the backend",
		}, []string{"method", "status"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend round-trips",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
		FlowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_errors_total",
			Help:      "Total number of flow operations that failed",
		}, []string{"flow", "operation"}),
	}

	m.registry.MustRegister(m.BackendRequests, m.BackendLatency, m.FlowErrors)
	return m
}

// ObserveBackendRequest records one backend round-trip. A status of 0
// means the request never produced an HTTP response.
func (m *Metrics) ObserveBackendRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(method, label).Inc()
	m.BackendLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// CountFlowError records a failed flow operation.
func (m *Metrics) CountFlowError(flow, operation string) {
	if m == nil {
		return
	}
	m.FlowErrors.WithLabelValues(flow, operation).Inc()
}

// Handler exposes the private registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
