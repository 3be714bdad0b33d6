package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the query pipeline metrics. All record methods are no-ops on a
// nil receiver so components can run without a registry.
type Metrics struct {
	LoaderFetches        *prometheus.CounterVec
	EntityCacheLookups   *prometheus.CounterVec
	FieldResolveDuration *prometheus.HistogramVec
	RootResolutions      *prometheus.CounterVec
	Queries              *prometheus.CounterVec
	QueryDuration        prometheus.Histogram
	SchemaTypes          prometheus.Gauge
}

// NewMetrics creates unregistered pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		LoaderFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semql",
				Name:      "loader_fetches_total",
				Help:      "Entity fragment loads by outcome (ok, error, skipped)",
			},
			[]string{"outcome"},
		),

		EntityCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semql",
				Name:      "entity_cache_lookups_total",
				Help:      "Entity cache predicate lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		FieldResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "semql",
				Name:      "field_resolve_duration_seconds",
				Help:      "Time spent resolving one field, by return shape",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"shape"},
		),

		RootResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semql",
				Name:      "root_resolutions_total",
				Help:      "Root field resolutions by outcome (ok, error, shared)",
			},
			[]string{"outcome"},
		),

		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semql",
				Name:      "queries_total",
				Help:      "Processed queries by outcome (ok, invalid, error)",
			},
			[]string{"outcome"},
		),

		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "semql",
				Name:      "query_duration_seconds",
				Help:      "End-to-end query processing time",
				Buckets:   prometheus.DefBuckets,
			},
		),

		SchemaTypes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "semql",
				Name:      "schema_types",
				Help:      "Composite types in the active synthesized schema",
			},
		),
	}
}

func (m *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.LoaderFetches,
		m.EntityCacheLookups,
		m.FieldResolveDuration,
		m.RootResolutions,
		m.Queries,
		m.QueryDuration,
		m.SchemaTypes,
	)
}

// RecordLoaderFetch counts one entity load.
func (m *Metrics) RecordLoaderFetch(outcome string) {
	if m == nil {
		return
	}
	m.LoaderFetches.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts one predicate lookup in the entity cache.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EntityCacheLookups.WithLabelValues(result).Inc()
}

// RecordFieldResolve observes the duration of one field resolution.
func (m *Metrics) RecordFieldResolve(shape string, d time.Duration) {
	if m == nil {
		return
	}
	m.FieldResolveDuration.WithLabelValues(shape).Observe(d.Seconds())
}

// RecordRootResolution counts one root field resolution.
func (m *Metrics) RecordRootResolution(outcome string) {
	if m == nil {
		return
	}
	m.RootResolutions.WithLabelValues(outcome).Inc()
}

// RecordQuery counts one processed query and observes its duration.
func (m *Metrics) RecordQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(d.Seconds())
}

// RecordSchemaTypes sets the number of synthesized composite types.
func (m *Metrics) RecordSchemaTypes(n int) {
	if m == nil {
		return
	}
	m.SchemaTypes.Set(float64(n))
}
