package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/G-Node/wdat2-sub001/metric"
)

// PanicHandler is told about a work item whose processor panicked.
type PanicHandler[T any] func(work T, recovered any)

// Pool is a fixed set of goroutines draining a bounded queue of work items.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	onPanic   PanicHandler[T]
	logger    *slog.Logger

	workChan chan T
	metrics  *Metrics
	wg       *sync.WaitGroup

	// submitMu lets submitters send concurrently while Stop waits for them
	// before closing the queue.
	submitMu sync.RWMutex
	started  bool
	stopped  bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	dropped   atomic.Int64

	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// Metrics holds the optional Prometheus metrics of a pool.
type Metrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a pool.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports pool metrics under wdat_worker_<prefix>_*.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pool[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPanicHandler sets the callback for recovered processor panics. The
// item counts as failed either way.
func WithPanicHandler[T any](handler PanicHandler[T]) Option[T] {
	return func(p *Pool[T]) {
		p.onPanic = handler
	}
}

// NewPool creates a pool. Non-positive sizes fall back to 1 worker and a
// queue of 1000.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(pool)
	}
	pool.logger = pool.logger.With("component", "worker")

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		var err error
		pool.metrics, err = newMetrics(pool.metricsRegistry, pool.metricsPrefix)
		if err != nil {
			pool.logger.Warn("Pool metrics not exported", "prefix", pool.metricsPrefix, "error", err)
		}
	}
	return pool
}

// newMetrics always returns usable metrics. Collectors that could not be
// registered still count but are not exported; the error lists them.
func newMetrics(registry *metric.MetricsRegistry, prefix string) (*Metrics, error) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: metric.Namespace,
			Subsystem: "worker",
			Name:      prefix + "_" + name,
			Help:      help,
		}
	}

	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts(opts("queue_depth", "Current worker queue depth"))),
		submitted:  prometheus.NewCounter(prometheus.CounterOpts(opts("submitted_total", "Work items submitted"))),
		processed:  prometheus.NewCounter(prometheus.CounterOpts(opts("processed_total", "Work items processed"))),
		failed: prometheus.NewCounter(prometheus.CounterOpts(
			opts("failed_total", "Work items that failed or panicked"))),
		dropped: prometheus.NewCounter(prometheus.CounterOpts(
			opts("dropped_total", "Work items dropped on a full queue"))),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "worker",
			Name:      prefix + "_processing_duration_seconds",
			Help:      "Time spent processing work items",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
	}

	service := "worker_" + prefix
	err := stderrors.Join(
		registry.RegisterGauge(service, "queue_depth", m.queueDepth),
		registry.RegisterCounter(service, "submitted_total", m.submitted),
		registry.RegisterCounter(service, "processed_total", m.processed),
		registry.RegisterCounter(service, "failed_total", m.failed),
		registry.RegisterCounter(service, "dropped_total", m.dropped),
		registry.RegisterHistogramVec(service, "processing_duration_seconds", m.processingTime),
	)
	return m, err
}

// Submit queues work without blocking. It fails with ErrQueueFull when the
// queue is at capacity.
func (p *Pool[T]) Submit(work T) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if err := p.acceptable(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.accepted()
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// SubmitWait queues work, waiting for room until ctx is done.
func (p *Pool[T]) SubmitWait(ctx context.Context, work T) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if err := p.acceptable(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.accepted()
		return nil
	case <-ctx.Done():
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ctx.Err()
	}
}

func (p *Pool[T]) acceptable() error {
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	return nil
}

func (p *Pool[T]) accepted() {
	p.submitted.Add(1)
	if p.metrics != nil {
		p.metrics.submitted.Inc()
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}

// Start launches the workers. They exit when ctx is cancelled or the pool
// is stopped.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued work to drain.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.submitMu.Lock()
	if !p.started || p.stopped {
		p.submitMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	p.submitMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Panicked:   p.panicked.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats is a snapshot of pool statistics.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Panicked   int64 `json:"panicked"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			start := time.Now()
			err := p.process(ctx, work)
			duration := time.Since(start)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				p.metrics.queueDepth.Set(float64(len(p.workChan)))
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
			}
		}
	}
}

// process runs the processor, turning a panic into an error so one bad
// item cannot take a worker down.
func (p *Pool[T]) process(ctx context.Context, work T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.onPanic != nil {
				p.onPanic(work, r)
			}
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return p.processor(ctx, work)
}
