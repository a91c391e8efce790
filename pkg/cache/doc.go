// Package cache provides the conditional-request cache of the data-access
// core.
//
// An ETagCache maps a server-relative request URL to the validator (ETag)
// the repository returned for it and the parsed response body. The request
// executor uses it two ways:
//
//   - before a GET, ETagFor supplies the If-None-Match validator
//   - on a 304, ContentForETag resolves the response validator back to the
//     stored body so the response is served without re-parsing
//
// Several URLs can carry the same validator. The index behind
// ContentForETag always points at the most recently stored one.
//
// # Eviction
//
// Entries are never evicted on store. The executor calls EvictOverCapacity
// once per request batch, after every response of the batch has been
// delivered, which drops the oldest entries until Capacity remain. A
// response stored in a batch is therefore always readable by the end of
// that batch.
//
// # Observability
//
// Statistics are always collected. WithMetrics additionally exports them to
// a metric.MetricsRegistry:
//
//	c, err := cache.New[*network.Body](1000,
//	    cache.WithMetrics[*network.Body](registry, "responses"))
package cache
