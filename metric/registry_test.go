package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "test"})
	require.NoError(t, registry.Register("loader", "test_counter", counter))

	err := registry.Register("loader", "test_counter", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.True(t, registry.Unregister("loader", "test_counter"))
	assert.False(t, registry.Unregister("loader", "test_counter"))
}

func TestRegisterPrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "a"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "a"})
	require.NoError(t, registry.Register("a", "dup_total", first))

	err := registry.Register("b", "dup_total", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCoreMetricsRecording(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordLoaderFetch("ok")
	m.RecordLoaderFetch("ok")
	m.RecordLoaderFetch("error")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordRootResolution("ok")
	m.RecordQuery("invalid", 10*time.Millisecond)
	m.RecordFieldResolve("scalar", time.Millisecond)
	m.RecordSchemaTypes(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoaderFetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoaderFetches.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("invalid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SchemaTypes))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLoaderFetch("ok")
		m.RecordCacheLookup(true)
		m.RecordFieldResolve("list", time.Second)
		m.RecordRootResolution("error")
		m.RecordQuery("ok", time.Second)
		m.RecordSchemaTypes(1)
	})

	var registry *MetricsRegistry
	assert.Nil(t, registry.CoreMetrics())
}

func TestHandlerExposesMetrics(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordQuery("ok", time.Millisecond)

	srv := httptest.NewServer(registry.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `semql_queries_total{outcome="ok"} 1`))
}
