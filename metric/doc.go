// Package metric wraps a Prometheus registry for the wdat process.
//
// NewMetricsRegistry registers the core metrics (repository API requests,
// dispatcher actions, bus publications, gateway clients, NATS status) plus
// the Go runtime collectors. Components register their own collectors under
// a component name; registering the same component/metric pair twice is
// an invalid-class error.
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordHTTPRequest("GET", 304, 12*time.Millisecond)
//
// Server exposes the registry over HTTP on its own port, plus any routes
// added with Handle; "wdat worker" mounts its /healthz there. Handler
// returns the bare Prometheus handler for mounting on an existing mux.
package metric
