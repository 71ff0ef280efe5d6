package rpcapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the vault daemon's Prometheus instrumentation, grounded on
// the kind of counters/histograms the teacher's deleted observability/metrics.go
// registered for its own RPC surface.
type Metrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewMetrics registers the vault's RPC metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field",
			Name:      "rpc_requests_total",
			Help:      "Total JSON-RPC requests handled, by method.",
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field",
			Name:      "rpc_errors_total",
			Help:      "Total JSON-RPC requests that returned an error, by method and code.",
		}, []string{"method", "code"}),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "field",
			Name:      "rpc_request_duration_seconds",
			Help:      "JSON-RPC request handling latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.requests, m.errors, m.latencies)
	return m
}

func (m *Metrics) observeRequest(method string, seconds float64) {
	m.requests.WithLabelValues(method).Inc()
	m.latencies.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) observeError(method string, code int) {
	m.errors.WithLabelValues(method, codeLabel(code)).Inc()
}

func codeLabel(code int) string {
	switch code {
	case codeInvalidParams:
		return "invalid_params"
	case codeUnauthorized:
		return "unauthorized"
	case codeMethodNotFound:
		return "method_not_found"
	default:
		return "server_error"
	}
}
