package gateway

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/G-Node/wdat2-sub001/metric"
)

// Metrics holds the gateway's Prometheus metrics.
type Metrics struct {
	core               *metric.Metrics
	framesReceived     *prometheus.CounterVec
	framesSent         prometheus.Counter
	bytesSent          prometheus.Counter
	connectionTotal    prometheus.Counter
	disconnectionTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
}

// newMetrics creates and registers gateway metrics. A nil registry means no
// metrics. The returned metrics are usable even when some collectors could
// not be registered.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		core: registry.CoreMetrics(),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "frames_received_total",
			Help:      "Request frames received from clients by outcome",
		}, []string{"outcome"}),

		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "frames_sent_total",
			Help:      "Reply frames written to clients",
		}),

		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to clients",
		}),

		connectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "client_connections_total",
			Help:      "Client connections accepted",
		}),

		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "client_disconnections_total",
			Help:      "Client disconnections by reason",
		}, []string{"disconnect_reason"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Gateway errors by type",
		}, []string{"error_type"}),
	}

	err := stderrors.Join(
		registry.RegisterCounterVec("gateway", "frames_received", m.framesReceived),
		registry.RegisterCounter("gateway", "frames_sent", m.framesSent),
		registry.RegisterCounter("gateway", "bytes_sent", m.bytesSent),
		registry.RegisterCounter("gateway", "client_connections", m.connectionTotal),
		registry.RegisterCounterVec("gateway", "client_disconnections", m.disconnectionTotal),
		registry.RegisterCounterVec("gateway", "errors", m.errorsTotal),
	)
	return m, err
}

func (m *Metrics) received(outcome string) {
	if m != nil {
		m.framesReceived.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) sent(n int) {
	if m != nil {
		m.framesSent.Inc()
		m.bytesSent.Add(float64(n))
	}
}

func (m *Metrics) connected(clients int) {
	if m != nil {
		m.connectionTotal.Inc()
		m.core.RecordGatewayClients(clients)
	}
}

func (m *Metrics) disconnected(reason string, clients int) {
	if m != nil {
		m.disconnectionTotal.WithLabelValues(reason).Inc()
		m.core.RecordGatewayClients(clients)
	}
}

func (m *Metrics) failed(kind string) {
	if m != nil {
		m.errorsTotal.WithLabelValues(kind).Inc()
	}
}
