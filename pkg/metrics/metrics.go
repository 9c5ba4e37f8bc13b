package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics records request-level and stock-mutation counters.
type APIMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	stockMutations  *prometheus.CounterVec
}

// NewAPIMetrics registers the API metrics on the provided registerer.
func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	if reg == nil {
		return &APIMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_mutations_total",
		Help: "Stock ledger mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, total, stock)
	return &APIMetrics{
		requestDuration: duration,
		requestTotal:    total,
		stockMutations:  stock,
	}
}

// ObserveRequest records one served HTTP request.
func (m *APIMetrics) ObserveRequest(method, route, status string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, normalizeLabel(route)).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, normalizeLabel(route), status).Inc()
}

// IncStockMutation counts one attempted stock ledger change.
func (m *APIMetrics) IncStockMutation(operation, outcome string) {
	if m == nil || m.stockMutations == nil {
		return
	}
	m.stockMutations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
