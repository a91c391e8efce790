// Package gateway serves the DataAPI to websocket clients.
//
// Clients send message.Request frames as JSON text and receive
// message.Reply frames. The gateway gives each connection its own bus
// scope: the first request on an event subscribes that event under a
// per-client suffix, the request is forwarded under the scoped name, and
// replies published there are written back to the client with the event
// renamed to what the client sent. Two clients may use the same event
// names without seeing each other's replies.
//
// Subscriptions are removed when the client disconnects. The number of
// connected clients is kept in the bus state "gateway.clients".
//
// Failed replies only reach clients when the bus error hook lets them
// through; the default hook logs and suppresses them. Frames the gateway
// refuses itself are answered directly: undecodable frames, frames without
// an event, events named like a bus state, and frames over the per-client
// rate limit (Config.RateLimit, Config.RateBurst).
//
// # Keepalive
//
// Clients are pinged on an interval (30s by default) and dropped when no
// pong arrives within two intervals. Writes carry a 10s deadline.
//
// # Endpoints
//
//	/ws       websocket endpoint (Config.Path)
//	/healthz  aggregated health.Status as JSON, 503 when unhealthy
package gateway
