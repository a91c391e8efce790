// Package network executes requests against the G-Node repository REST API.
//
// The Executor issues conditional GETs in parallel, validating every
// request against the ETag cache, and optionally expands the children of
// returned objects level by level. Failures are never returned as Go
// errors: each URL yields a Response whose Error flag and Message describe
// what went wrong, so one failing URL never aborts its siblings.
//
// Messages follow the repository's conventions:
//
//	Severe Error: wrong content type or no content (200)
//	Severe Error: cache miss etag = '<etag>' (304)
//	Client Error: unresolved (<status>)
//	Server Error: unresolved (<status>)
//
// A transport failure has status 0. When the optional circuit breaker is
// open, requests fail fast with "Server Error: circuit breaker open (0)".
//
// Specifier translates a structured search into a list URL; Executor.Get
// runs a batch of them.
package network
