package health

import (
	"sync"
	"time"

	"github.com/G-Node/wdat2-sub001/metric"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics exports every update as a per-component health gauge.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Monitor) {
		if registry != nil {
			m.metrics = registry.CoreMetrics()
		}
	}
}

// Monitor keeps the latest status of each named component. Safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	metrics  *metric.Metrics
}

// NewMonitor creates an empty monitor.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		statuses: make(map[string]Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update stores status under name, replacing its component name.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordHealthStatus(name, status.IsHealthy())
	}
}

// UpdateHealthy marks name healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks name unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks name degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get returns the latest status of name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// Remove stops reporting name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
}

// AggregateHealth aggregates every component into one status for
// systemName.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	return Aggregate(systemName, subs)
}
