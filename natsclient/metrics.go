package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semql/metric"
)

// requestMetrics counts requests sent through the client. A nil value records
// nothing.
type requestMetrics struct {
	requests *prometheus.CounterVec
}

func newRequestMetrics(registry *metric.MetricsRegistry) (*requestMetrics, error) {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semql",
			Subsystem: "nats",
			Name:      "requests_total",
			Help:      "NATS requests by subject and outcome (ok, error, remote_error, unavailable)",
		}, []string{"subject", "outcome"}),
	}
	if err := registry.Register("natsclient", "requests", m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *requestMetrics) record(subject, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(subject, outcome).Inc()
}
