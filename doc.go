// Package wdat is the data-access core of a browser for the G-Node
// electrophysiology and metadata repository.
//
// It loads, stores and deletes repository objects over the repository's
// REST API and delivers the results asynchronously as events. Presenters
// never talk HTTP themselves: they call the DataAPI with an event name and
// subscribe to that event on the bus.
//
// # Architecture
//
// Requests flow through the packages in this order:
//
//	presenter
//	  -> dataapi.DataAPI     builds a message.Request
//	  -> dispatcher.Transport inline, worker pool or NATS
//	  -> dispatcher.Dispatcher routes by action
//	  -> network.Executor    conditional GET with an ETag cache, POST, DELETE
//	  -> adapter             wire format to model.Object and back
//	  -> message.Reply       back over the transport
//	  -> bus.Bus             published on the request's event
//
// The dispatcher runs isolated from callers. Requests and replies cross the
// transport as JSON, so neither side can mutate what the other holds.
//
// # Packages
//
//   - model: object types, categories and per-type templates
//   - bus: synchronous publish/subscribe with named states
//   - pkg/cache: URL to ETag and body cache with capacity eviction
//   - network: request executor, specifier to URL translation
//   - adapter: translation between wire and application objects
//   - message: request and reply envelopes
//   - dispatcher: action routing and the three transports
//   - dataapi: the facade presenters use
//   - gateway: websocket access for browser presenters
//   - config, errors, metric, health, natsclient: ambient infrastructure
//
// # Running
//
// The wdat command serves the DataAPI over websockets, runs dispatcher
// workers behind NATS and answers one-shot queries:
//
//	wdat serve --config wdat.yaml
//	wdat worker --config wdat.yaml
//	wdat get '{"type": "section", "parent": ""}'
//	wdat fetch /metadata/section/1 --depth 1
//
// Configuration is YAML or JSON, checked against an embedded JSON schema and
// overridable with WDAT_* environment variables. See package config.
package wdat
