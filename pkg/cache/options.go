package cache

import (
	"time"

	"github.com/G-Node/wdat2-sub001/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
	clock         func() time.Time
}

// WithMetrics exports cache statistics as Prometheus metrics labelled with
// prefix. A nil registry or empty prefix is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked for every evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithClock replaces the time source used for entry timestamps.
func WithClock[V any](clock func() time.Time) Option[V] {
	return func(opts *cacheOptions[V]) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{clock: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
