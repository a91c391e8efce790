// Package worker provides a generic worker pool.
//
// A Pool runs a fixed number of goroutines that drain a bounded queue:
//
//	pool := worker.NewPool[message.Request](1, 100,
//	    func(ctx context.Context, req message.Request) error {
//	        return handle(ctx, req)
//	    },
//	    worker.WithPanicHandler[message.Request](onPanic),
//	)
//	if err := pool.Start(ctx); err != nil { ... }
//	defer pool.Stop(5 * time.Second)
//
// Submit never blocks and reports ErrQueueFull on overload; SubmitWait
// waits for room until its context is done. A panicking processor is
// recovered, counted as failed and reported to the PanicHandler; the
// worker keeps running.
//
// Statistics are always kept (Stats). Prometheus metrics are added with
// WithMetricsRegistry.
package worker
