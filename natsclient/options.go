package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/metric"
)

// ClientOption configures a Client. NewClient fails on the first option
// that returns an error.
type ClientOption func(*Client) error

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", errors.ErrInvalidConfig, name, d)
	}
	return nil
}

// WithName sets the connection name reported to the server.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithMaxReconnects bounds reconnect attempts. -1 retries forever.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		if n < -1 {
			return fmt.Errorf("%w: max reconnects %d", errors.ErrInvalidConfig, n)
		}
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if err := positive("reconnect wait", d); err != nil {
			return err
		}
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if err := positive("timeout", d); err != nil {
			return err
		}
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds how long Close drains subscriptions.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if err := positive("drain timeout", d); err != nil {
			return err
		}
		c.drainTimeout = d
		return nil
	}
}

// WithCircuitBreaker opens the connect circuit after threshold failed
// rounds. The backoff doubles per opening and is capped at maxBackoff.
func WithCircuitBreaker(threshold int32, maxBackoff time.Duration) ClientOption {
	return func(c *Client) error {
		if threshold < 1 {
			return fmt.Errorf("%w: circuit threshold %d", errors.ErrInvalidConfig, threshold)
		}
		if maxBackoff < time.Second {
			return fmt.Errorf("%w: max backoff %v under one second", errors.ErrInvalidConfig, maxBackoff)
		}
		c.circuitThreshold = threshold
		c.maxBackoff = maxBackoff
		return nil
	}
}

// WithCredentials authenticates with a user and password. Both must be
// set for them to be sent.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username, c.password = username, password
		return nil
	}
}

// WithToken authenticates with a token.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics reports connection state and reconnects. A nil registry
// is ignored.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
		return nil
	}
}

// WithHealthChangeCallback is called, on its own goroutine, whenever the
// connection is lost or restored.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithHealthInterval sets how often the connection is probed with a
// round trip. Zero disables probing.
func WithHealthInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("%w: health interval %v", errors.ErrInvalidConfig, d)
		}
		c.healthInterval = d
		return nil
	}
}
