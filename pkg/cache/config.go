package cache

import (
	"fmt"

	"github.com/G-Node/wdat2-sub001/errors"
)

// Config contains configuration for cache creation.
type Config struct {
	// Capacity is the number of entries kept after each request batch.
	Capacity int `json:"capacity" yaml:"capacity"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("capacity must be positive, got %d", c.Capacity))
	}
	return nil
}

// NewFromConfig creates a cache from config. Additional options configure
// metrics and callbacks.
func NewFromConfig[V any](config Config, options ...Option[V]) (*ETagCache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation")
	}
	return New[V](config.Capacity, options...)
}
