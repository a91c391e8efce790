package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/G-Node/wdat2-sub001/errors"
)

// NonRetryableError ends the retry loop at once.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return "non-retryable: " + e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable marks err so Do returns it without another attempt.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return stderrors.As(err, &nre)
}

// Config describes an exponential backoff. Zero delays and multiplier take
// the DefaultConfig values.
type Config struct {
	MaxAttempts  int // total attempts, below 1 means one
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	AddJitter    bool // up to 25% on top of each delay

	// OnRetry, when set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		AddJitter:    true,
	}
}

// Quick retries for roughly ten seconds, meant for a server that may still
// be starting.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

func (cfg Config) normalize() (Config, error) {
	if cfg.InitialDelay < 0 || cfg.MaxDelay < 0 || cfg.Multiplier < 0 {
		return cfg, fmt.Errorf("retry: negative delay or multiplier")
	}
	def := DefaultConfig()
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = def.Multiplier
	}
	cfg.Multiplier = min(cfg.Multiplier, 1000)
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, fmt.Errorf("retry: MaxDelay %v below InitialDelay %v", cfg.MaxDelay, cfg.InitialDelay)
	}
	return cfg, nil
}

// wait returns the pause after the given delay, with jitter if enabled.
func (cfg Config) wait(delay time.Duration) time.Duration {
	if !cfg.AddJitter || delay < 4 {
		return delay
	}
	return delay + rand.N(delay/4)
}

func (cfg Config) next(delay time.Duration) time.Duration {
	grown := float64(delay) * cfg.Multiplier
	if grown >= float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(grown)
}

// Do calls fn until it succeeds, returns a NonRetryable error, runs out of
// attempts or ctx ends. Exhausting the attempts yields an error matching
// both errors.ErrMaxRetriesExceeded and the last failure.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			return nil
		case IsNonRetryable(err):
			return err
		case ctx.Err() != nil:
			return fmt.Errorf("retry: cancelled after attempt %d: %w", attempt, ctx.Err())
		case attempt >= cfg.MaxAttempts:
			return fmt.Errorf("%w after %d attempts: %w", errors.ErrMaxRetriesExceeded, attempt, err)
		}

		pause := cfg.wait(delay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, pause)
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry: cancelled before attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
		delay = cfg.next(delay)
	}
}

// DoWithResult is Do for functions that also return a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
