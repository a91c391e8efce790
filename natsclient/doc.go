// Package natsclient manages the NATS connection that carries requests
// between wdat processes.
//
// Client wraps *nats.Conn with connection status tracking, a circuit breaker
// on connection attempts, periodic health checks and a context-aware
// Publish/Subscribe pair. Those two methods are all the dispatcher
// transports need, so a Client can be handed to dispatcher.NewNATS and
// dispatcher.ServeNATS directly:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("wdat-worker"),
//		natsclient.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	err = dispatcher.ServeNATS(ctx, client, d)
//
// After five failed Connect calls (see WithCircuitBreaker) the
// circuit opens and Connect returns ErrCircuitOpen without dialing. The
// circuit half-opens again after a backoff that doubles on every opening,
// capped by the maximum given to WithCircuitBreaker.
//
// Tests tagged "integration" start a real server with testcontainers; see
// NewTestClient.
package natsclient
