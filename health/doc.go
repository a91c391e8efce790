// Package health tracks the health of wdat components and aggregates it
// into one system status.
//
// # Health States
//
// A Status is healthy, degraded or unhealthy. Degraded means the component
// still answers but with reduced function, for example a NATS connection
// that is reconnecting or a repository breaker that is half-open.
//
// # Usage
//
//	monitor := health.NewMonitor(health.WithMetrics(registry))
//	monitor.UpdateHealthy("gateway", "0 clients")
//	monitor.Update("nats", health.FromError("nats", err))
//
//	mux.Handle("/healthz", health.Handler(monitor, "wdat"))
//
// AggregateHealth applies worst-case rules: any unhealthy component makes
// the system unhealthy, otherwise any degraded one makes it degraded.
// Handler answers 503 only for an unhealthy system.
//
// # Sanitization
//
// FromError strips URLs, paths, addresses, ports and credentials from error
// text before it reaches a status, since /healthz is served to anyone who
// can reach the gateway:
//
//	"dial https://gnode.example.org/api failed" -> "dial [URL] failed"
//
// # Thread Safety
//
// Monitor is safe for concurrent use. Status is a value type; Aggregate
// copies the sub-statuses it is given.
package health
