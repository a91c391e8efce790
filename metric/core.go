package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by wdat.
const Namespace = "wdat"

// Metrics contains the process-wide metrics shared by all components.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPCircuitBreaker  prometheus.Gauge
	DispatchTotal       *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
	BusPublications     *prometheus.CounterVec
	GatewayClients      prometheus.Gauge
	HealthCheckStatus   *prometheus.GaugeVec

	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates the core metrics. They are unregistered until a
// MetricsRegistry takes them.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests sent to the repository API by method and status class",
			},
			[]string{"method", "class"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Repository API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		HTTPCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "circuit_breaker",
				Help:      "Repository circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),

		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "dispatch",
				Name:      "requests_total",
				Help:      "Dispatched requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),

		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time from request receipt to reply in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		BusPublications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "publications_total",
				Help:      "Event bus publications by outcome (delivered, suppressed, rejected)",
			},
			[]string{"outcome"},
		),

		GatewayClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "gateway",
				Name:      "clients",
				Help:      "Connected websocket clients",
			},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.HTTPRequests,
		c.HTTPRequestDuration,
		c.HTTPCircuitBreaker,
		c.DispatchTotal,
		c.DispatchDuration,
		c.BusPublications,
		c.GatewayClients,
		c.HealthCheckStatus,
		c.NATSConnected,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

// StatusClass buckets an HTTP status for labelling. Zero means the request
// never got a response.
func StatusClass(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordHTTPRequest counts one repository API request and its duration.
func (c *Metrics) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, StatusClass(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordHTTPCircuitBreakerState updates the repository breaker gauge.
func (c *Metrics) RecordHTTPCircuitBreakerState(state int) {
	c.HTTPCircuitBreaker.Set(float64(state))
}

// RecordDispatch counts one dispatched request.
func (c *Metrics) RecordDispatch(action string, failed bool, duration time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	c.DispatchTotal.WithLabelValues(action, outcome).Inc()
	c.DispatchDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordBusPublication counts a publish by outcome.
func (c *Metrics) RecordBusPublication(outcome string) {
	c.BusPublications.WithLabelValues(outcome).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}

// RecordGatewayClients sets the number of connected gateway clients.
func (c *Metrics) RecordGatewayClients(n int) {
	c.GatewayClients.Set(float64(n))
}
