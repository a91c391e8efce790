package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/G-Node/wdat2-sub001/metric"
)

type job struct {
	id    int
	delay time.Duration
	fail  bool
	panic bool
}

func run(_ context.Context, j job) error {
	if j.panic {
		panic("bad job")
	}
	time.Sleep(j.delay)
	if j.fail {
		return errors.New("simulated error")
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0, run)
	if pool.workers != 1 {
		t.Errorf("expected 1 default worker, got %d", pool.workers)
	}
	if pool.queueSize != 1000 {
		t.Errorf("expected default queue size 1000, got %d", pool.queueSize)
	}
}

func TestNewPool_NilProcessor(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for nil processor")
		}
		if !errors.Is(r.(error), ErrNilProcessor) {
			t.Errorf("expected ErrNilProcessor, got %v", r)
		}
	}()
	NewPool[job](1, 10, nil)
}

func TestPool_Lifecycle(t *testing.T) {
	var done atomic.Int64
	pool := NewPool(2, 10, func(_ context.Context, _ job) error {
		done.Add(1)
		return nil
	})

	if err := pool.Submit(job{}); !errors.Is(err, ErrPoolNotStarted) {
		t.Fatalf("expected ErrPoolNotStarted, got %v", err)
	}

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := pool.Start(ctx); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Fatalf("expected ErrPoolAlreadyStarted, got %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := pool.Submit(job{id: i}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := done.Load(); got != 5 {
		t.Errorf("queued work must drain on stop: processed %d of 5", got)
	}
	if err := pool.Submit(job{}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
	if err := pool.Stop(time.Second); err != nil {
		t.Errorf("second stop must be a no-op, got %v", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	pool := NewPool(1, 2, run)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(5 * time.Second)

	var full error
	for i := 0; i < 10; i++ {
		if err := pool.Submit(job{id: i, delay: 200 * time.Millisecond}); err != nil {
			full = err
			break
		}
	}
	if !errors.Is(full, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", full)
	}
	if pool.Stats().Dropped == 0 {
		t.Error("stats should count the dropped item")
	}
}

func TestPool_SubmitWaitBlocksUntilRoom(t *testing.T) {
	pool := NewPool(1, 1, run)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(5 * time.Second)

	for i := 0; i < 3; i++ {
		if err := pool.SubmitWait(context.Background(), job{id: i, delay: 20 * time.Millisecond}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	waitFor(t, func() bool { return pool.Stats().Processed == 3 })
}

func TestPool_SubmitWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ job) error {
		<-release
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		close(release)
		pool.Stop(5 * time.Second)
	}()

	_ = pool.Submit(job{id: 1})
	waitFor(t, func() bool { return pool.Stats().QueueDepth == 0 })
	_ = pool.Submit(job{id: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := pool.SubmitWait(ctx, job{id: 3}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	var (
		mu     sync.Mutex
		caught []int
	)
	pool := NewPool(1, 10, run, WithPanicHandler(func(j job, r any) {
		mu.Lock()
		defer mu.Unlock()
		caught = append(caught, j.id)
		if r != "bad job" {
			t.Errorf("unexpected panic value %v", r)
		}
	}))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(5 * time.Second)

	_ = pool.Submit(job{id: 1, panic: true})
	_ = pool.Submit(job{id: 2})
	_ = pool.Submit(job{id: 3, fail: true})

	waitFor(t, func() bool { return pool.Stats().Processed == 3 })

	stats := pool.Stats()
	if stats.Failed != 2 || stats.Panicked != 1 {
		t.Errorf("expected 2 failed and 1 panicked, got %+v", stats)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(caught) != 1 || caught[0] != 1 {
		t.Errorf("panic handler saw %v", caught)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	pool := NewPool(1, 10, func(ctx context.Context, _ job) error {
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}

	_ = pool.Submit(job{id: 1})
	waitFor(t, func() bool { return pool.Stats().QueueDepth == 0 })

	if err := pool.Stop(50 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("expected ErrStopTimeout, got %v", err)
	}
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var done atomic.Int64
	pool := NewPool(4, 200, func(_ context.Context, _ job) error {
		done.Add(1)
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for s := 0; s < 10; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := pool.Submit(job{id: s*10 + j}); err != nil {
					t.Errorf("submit: %v", err)
				}
			}
		}(s)
	}
	wg.Wait()

	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	if got := done.Load(); got != 100 {
		t.Errorf("expected 100 processed, got %d", got)
	}
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := NewPool(1, 10, run, WithMetricsRegistry[job](registry, "dispatch"))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	_ = pool.Submit(job{id: 1})
	_ = pool.Submit(job{id: 2, fail: true})
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	if got := promtest.ToFloat64(pool.metrics.submitted); got != 2 {
		t.Errorf("submitted = %v", got)
	}
	if got := promtest.ToFloat64(pool.metrics.failed); got != 1 {
		t.Errorf("failed = %v", got)
	}

	count, err := promtest.GatherAndCount(registry.PrometheusRegistry(), "wdat_worker_dispatch_processed_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected the processed counter to be registered, found %d series", count)
	}
}

func TestPool_MetricsRegistrationConflictIsLogged(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	_ = NewPool(1, 10, run, WithMetricsRegistry[job](registry, "dispatch"))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	pool := NewPool(1, 10, run,
		WithMetricsRegistry[job](registry, "dispatch"),
		WithLogger[job](logger))

	if pool.metrics == nil {
		t.Fatal("expected metrics to be usable after a registration conflict")
	}
	if !strings.Contains(logs.String(), "Pool metrics not exported") {
		t.Errorf("expected a warning about the conflict, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "worker_dispatch.queue_depth already registered") {
		t.Errorf("expected the conflicting key in the warning, got %q", logs.String())
	}
}
