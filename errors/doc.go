// Package errors provides the error classification used across the wdat
// data-access core.
//
// # Classification
//
// Errors fall into three classes:
//
//   - Transient: connection loss, timeouts, an open circuit breaker
//   - Invalid: unknown object types, malformed identifiers or specifiers,
//     application objects without a type
//   - Fatal: broken configuration
//
// Per-URL request failures are not Go errors at all. They travel inside
// network.Response values so one failed URL never aborts its siblings. The
// classified errors here cover caller mistakes and infrastructure failures.
//
// # Wrapping
//
// Wrap keeps messages in the "component.method: action failed: cause" shape:
//
//	if err := json.Unmarshal(b, &req); err != nil {
//	    return errors.WrapInvalid(err, "Dispatcher", "Handle", "decode request")
//	}
//
// The classified variants record the class so callers can branch with
// IsTransient, IsInvalid and IsFatal while errors.Is still matches the
// underlying sentinel:
//
//	err := api.Set(ctx, "saved", obj, nil)
//	if errors.Is(err, errors.ErrNoType) {
//	    // the object needs a type before it can be stored
//	}
//
// Sentinels that are not wrapped by a Wrap* helper are classified by a
// fixed table. Context cancellation and network timeouts count as
// transient. Retrying is left to pkg/retry; the request path never retries
// on its own.
package errors
