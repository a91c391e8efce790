package cache

import (
	"github.com/G-Node/wdat2-sub001/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics exports the ETag cache counters. Every series carries the
// owning component as a constant label.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, component string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": component}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &cacheMetrics{
		hits:      counter("hits_total", "Validators resolved to cached content on 304"),
		misses:    counter("misses_total", "304 validators with no cached content"),
		sets:      counter("sets_total", "Responses stored with their ETag"),
		evictions: counter("evictions_total", "Entries dropped by capacity eviction"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			Help:        "Entries currently held",
			ConstLabels: labels,
		}),
	}

	counters := []struct {
		name string
		c    prometheus.Counter
	}{
		{"cache_hits", m.hits},
		{"cache_misses", m.misses},
		{"cache_sets", m.sets},
		{"cache_evictions", m.evictions},
	}
	for _, entry := range counters {
		if err := registry.RegisterCounter(component, entry.name, entry.c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(component, "cache_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) recordHit()      { m.hits.Inc() }
func (m *cacheMetrics) recordMiss()     { m.misses.Inc() }
func (m *cacheMetrics) recordSet()      { m.sets.Inc() }
func (m *cacheMetrics) recordEviction() { m.evictions.Inc() }

func (m *cacheMetrics) updateSize(n int) { m.size.Set(float64(n)) }
