package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/pkg/worker"
)

// Worker runs requests on a pool of goroutines. Requests and replies are
// passed JSON-encoded, which gives both sides private copies.
type Worker struct {
	dispatcher *Dispatcher
	pool       *worker.Pool[[]byte]
	replies    replies
	logger     *slog.Logger
}

var _ Transport = (*Worker)(nil)

// NewWorker starts a worker transport for d. The pool stops when ctx is
// cancelled or Close is called.
func NewWorker(ctx context.Context, d *Dispatcher, opts ...TransportOption) (*Worker, error) {
	cfg := newTransportConfig(opts)

	w := &Worker{
		dispatcher: d,
		logger:     cfg.logger.With("component", "dispatch-worker"),
	}

	poolOpts := []worker.Option[[]byte]{
		worker.WithPanicHandler(w.onPanic),
		worker.WithLogger[[]byte](cfg.logger),
	}
	if cfg.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[[]byte](cfg.registry, "dispatch"))
	}
	w.pool = worker.NewPool(cfg.workers, cfg.queueSize, w.process, poolOpts...)

	if err := w.pool.Start(ctx); err != nil {
		return nil, errors.WrapFatal(err, "Worker", "NewWorker", "start pool")
	}
	return w, nil
}

// Send encodes req and queues it, waiting for room until ctx is done.
func (w *Worker) Send(ctx context.Context, req message.Request) error {
	data, err := message.Encode(req)
	if err != nil {
		return err
	}
	if err := w.pool.SubmitWait(ctx, data); err != nil {
		return errors.WrapTransient(err, "Worker", "Send", "queue request")
	}
	return nil
}

// OnReply sets the reply handler.
func (w *Worker) OnReply(handler ReplyHandler) {
	w.replies.set(handler)
}

// Close stops the pool once queued requests are handled or ctx expires.
func (w *Worker) Close(ctx context.Context) error {
	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return w.pool.Stop(timeout)
}

// Stats returns the pool statistics.
func (w *Worker) Stats() worker.PoolStats {
	return w.pool.Stats()
}

func (w *Worker) process(ctx context.Context, data []byte) error {
	req, err := message.DecodeRequest(data)
	if err != nil {
		w.logger.Error("Dropping undecodable request", "error", err)
		return err
	}

	reply, err := message.Clone(w.dispatcher.Handle(ctx, req))
	if err != nil {
		w.logger.Error("Dropping unencodable reply", "id", req.ID, "error", err)
		return err
	}
	w.replies.deliver(reply)
	return nil
}

// onPanic logs a request whose handling panicked. No reply is published,
// so the caller never hears back about it.
func (w *Worker) onPanic(data []byte, recovered any) {
	w.logger.Error("Worker error", "error", fmt.Sprint(recovered), "request", string(data))
}
