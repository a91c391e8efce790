package worker

import "errors"

// Errors returned by Pool.
var (
	ErrPoolNotStarted     = errors.New("worker: pool not started")
	ErrPoolStopped        = errors.New("worker: pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	ErrQueueFull          = errors.New("worker: queue full")
	ErrStopTimeout        = errors.New("worker: workers did not stop in time")

	// ErrNilProcessor is the panic value of NewPool when handed a nil
	// processor.
	ErrNilProcessor = errors.New("worker: nil processor")

	// ErrProcessorPanic wraps a panic recovered from the processor. The
	// job that panicked gets no result.
	ErrProcessorPanic = errors.New("worker: processor panicked")
)
