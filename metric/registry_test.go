package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-service", "test_counter", counter))
	counter.Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "counter should be registered in the Prometheus registry")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	require.NoError(t, registry.RegisterGauge("svc", "dup_gauge", gauge))

	err := registry.RegisterGauge("svc", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	other := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	err = registry.RegisterGauge("other", "dup_gauge", other)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vec_total", Help: "v"}, []string{"k"})
	require.NoError(t, registry.RegisterCounterVec("svc", "vec_total", vec))

	assert.True(t, registry.Unregister("svc", "vec_total"))
	assert.False(t, registry.Unregister("svc", "vec_total"))

	// the name is free again
	require.NoError(t, registry.RegisterCounterVec("svc", "vec_total", vec))
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordHTTPRequest("GET", 304, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", 0, time.Millisecond)
	m.RecordDispatch("get", false, time.Millisecond)
	m.RecordDispatch("get", true, time.Millisecond)
	m.RecordBusPublication("suppressed")
	m.RecordHealthStatus("executor", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "3xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "transport_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchTotal.WithLabelValues("get", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusPublications.WithLabelValues("suppressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthCheckStatus.WithLabelValues("executor")))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(200))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "transport_error", StatusClass(0))
}

func TestHandler_ServesCoreMetrics(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordBusPublication("delivered")

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "wdat_bus_publications_total")
}
