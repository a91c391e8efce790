package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/G-Node/wdat2-sub001/errors"
)

// MetricsRegistry owns the Prometheus registry of one process. It holds
// the core metrics, the Go runtime collectors and any collector a
// component adds under a component.name key.
type MetricsRegistry struct {
	prom    *prometheus.Registry
	Metrics *Metrics

	mu     sync.Mutex
	byName map[string]prometheus.Collector
}

func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:    prometheus.NewRegistry(),
		Metrics: NewMetrics(),
		byName:  map[string]prometheus.Collector{},
	}
	r.prom.MustRegister(r.Metrics.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry is what the /metrics handler gathers from.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

// CoreMetrics returns the metrics every wdat process exports.
func (r *MetricsRegistry) CoreMetrics() *Metrics { return r.Metrics }

func (r *MetricsRegistry) RegisterCounter(component, name string, c prometheus.Counter) error {
	return r.Register(component, name, c)
}

func (r *MetricsRegistry) RegisterGauge(component, name string, g prometheus.Gauge) error {
	return r.Register(component, name, g)
}

func (r *MetricsRegistry) RegisterCounterVec(component, name string, v *prometheus.CounterVec) error {
	return r.Register(component, name, v)
}

func (r *MetricsRegistry) RegisterHistogramVec(component, name string, v *prometheus.HistogramVec) error {
	return r.Register(component, name, v)
}

// Register adds c under component.name. Registering the same key twice,
// or a collector whose descriptors Prometheus already knows, is an
// invalid-class error.
func (r *MetricsRegistry) Register(component, name string, c prometheus.Collector) error {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[key]; dup {
		return errors.WrapInvalid(fmt.Errorf("%s already registered", key),
			"MetricsRegistry", "Register", "register "+key)
	}
	if err := r.prom.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register", "register "+key)
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register "+key)
	}
	r.byName[key] = c
	return nil
}

// Unregister removes the collector registered under component.name and
// reports whether there was one.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byName[key]
	if !ok || !r.prom.Unregister(c) {
		return false
	}
	delete(r.byName, key)
	return true
}
