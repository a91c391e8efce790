package network

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/metric"
)

// BreakerConfig configures the optional circuit breaker in front of the
// repository server.
type BreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32 `json:"max_failures" yaml:"max_failures"`
	// OpenTimeout is how long the breaker stays open before a probe request
	// is let through.
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`
}

// DefaultBreakerConfig returns a disabled breaker with usable thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:     false,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Validate checks the thresholds of an enabled breaker.
func (c BreakerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxFailures == 0 || c.OpenTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Executor", "Validate",
			"breaker needs max_failures and open_timeout")
	}
	return nil
}

// serverFailure marks a response that counts against the breaker. The
// response itself is still handed back to the caller.
type serverFailure struct {
	status int
}

func (f *serverFailure) Error() string {
	return "server failure"
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger, metrics *metric.Metrics) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "repository",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordHTTPCircuitBreakerState(breakerState(to))
			}
		},
	})
}

// breakerState maps gobreaker states onto gauge values: 0 closed, 1 open,
// 2 half-open.
func breakerState(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
