// Package retry provides exponential backoff for startup connections.
//
// The request path of the data-access core never retries: a failed URL is
// reported to the caller as-is. Retry is reserved for infrastructure that
// may come up after the process, such as the NATS server:
//
//	client, err := retry.DoWithResult(ctx, retry.Quick(), func() (*natsclient.Client, error) {
//	    return connect(ctx)
//	})
//
// Wrap an error with NonRetryable to stop the loop early, for example when
// credentials are rejected.
package retry
