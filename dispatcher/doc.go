// Package dispatcher turns request messages into reply messages.
//
// A Dispatcher is pure: given a message.Request it runs the matching
// repository operation through a network.Executor, adapts the outcome and
// returns a message.Reply. It never publishes anything itself.
//
// Transports decide where that work runs and how replies come back:
//
//   - Inline handles a request on the caller's goroutine.
//   - Worker hands requests to a worker.Pool. Messages cross the boundary
//     JSON-encoded, so neither side can observe the other's mutations.
//   - NATS publishes requests on "<prefix>.request" and listens for replies
//     on a subject of its own. ServeNATS hosts a Dispatcher on the other end.
//
// Basic usage:
//
//	d := dispatcher.New(executor, dispatcher.WithLogger(logger))
//	t := dispatcher.NewInline(d)
//	t.OnReply(func(reply message.Reply) { ... })
//	err := t.Send(ctx, req)
package dispatcher
