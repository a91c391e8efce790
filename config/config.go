package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/network"
	"github.com/G-Node/wdat2-sub001/pkg/cache"
)

// Worker modes select the transport between the DataAPI and the dispatcher.
const (
	WorkerModeInline = "inline" // Dispatcher called on the caller's goroutine
	WorkerModeWorker = "worker" // Isolated goroutine pool
	WorkerModeNATS   = "nats"   // Dispatcher hosted by a separate process
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Cache   cache.Config  `json:"cache" yaml:"cache"`
	Worker  WorkerConfig  `json:"worker" yaml:"worker"`
	NATS    NATSConfig    `json:"nats" yaml:"nats"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// ServerConfig describes the repository server and how it is queried.
type ServerConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Timeout     Duration      `json:"timeout" yaml:"timeout"`
	MaxDepth    int           `json:"max_depth" yaml:"max_depth"`
	Compression bool          `json:"compression" yaml:"compression"`
	Breaker     BreakerConfig `json:"breaker" yaml:"breaker"`
}

// BreakerConfig mirrors network.BreakerConfig with string durations.
type BreakerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	MaxFailures uint32   `json:"max_failures" yaml:"max_failures"`
	OpenTimeout Duration `json:"open_timeout" yaml:"open_timeout"`
}

// WorkerConfig selects and sizes the dispatcher transport.
type WorkerConfig struct {
	Mode      string `json:"mode" yaml:"mode"`
	Workers   int    `json:"workers" yaml:"workers"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string   `json:"url" yaml:"url"`
	SubjectPrefix string   `json:"subject_prefix" yaml:"subject_prefix"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	DrainTimeout  Duration `json:"drain_timeout" yaml:"drain_timeout"`

	// Password is only sent together with User.
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

// GatewayConfig configures the websocket gateway.
type GatewayConfig struct {
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`
	// RateLimit caps requests per second per client; 0 disables the limit.
	RateLimit int `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	exec := network.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			BaseURL:     exec.BaseURL,
			Timeout:     Duration(exec.Timeout),
			MaxDepth:    exec.MaxDepth,
			Compression: exec.Compression,
			Breaker: BreakerConfig{
				Enabled:     exec.Breaker.Enabled,
				MaxFailures: exec.Breaker.MaxFailures,
				OpenTimeout: Duration(exec.Breaker.OpenTimeout),
			},
		},
		Cache: cache.DefaultConfig(),
		Worker: WorkerConfig{
			Mode:      WorkerModeWorker,
			Workers:   1,
			QueueSize: 1000,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "wdat",
			Name:          "wdat",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Timeout:       Duration(5 * time.Second),
			DrainTimeout:  Duration(30 * time.Second),
		},
		Gateway: GatewayConfig{
			Port:      8080,
			Path:      "/ws",
			RateLimit: 100,
			RateBurst: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Executor converts the server section to an executor configuration.
func (c *Config) Executor() network.Config {
	return network.Config{
		BaseURL:     c.Server.BaseURL,
		Timeout:     c.Server.Timeout.Duration(),
		MaxDepth:    c.Server.MaxDepth,
		Compression: c.Server.Compression,
		Breaker: network.BreakerConfig{
			Enabled:     c.Server.Breaker.Enabled,
			MaxFailures: c.Server.Breaker.MaxFailures,
			OpenTimeout: c.Server.Breaker.OpenTimeout.Duration(),
		},
	}
}

// Validate checks the cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	if err := c.Executor().Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "server section")
	}
	if err := c.Cache.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "cache section")
	}

	switch c.Worker.Mode {
	case WorkerModeInline, WorkerModeWorker, WorkerModeNATS:
	default:
		return invalid("worker.mode %q must be inline, worker or nats", c.Worker.Mode)
	}
	if c.Worker.Workers < 1 || c.Worker.QueueSize < 1 {
		return invalid("worker.workers and worker.queue_size must be positive")
	}

	// Normalize prefix to lowercase
	c.NATS.SubjectPrefix = strings.ToLower(c.NATS.SubjectPrefix)
	if !isValidNATSSubjectPart(c.NATS.SubjectPrefix) {
		return invalid("nats.subject_prefix %q is not valid for NATS subjects", c.NATS.SubjectPrefix)
	}
	if c.Worker.Mode == WorkerModeNATS {
		if c.NATS.URL == "" {
			return invalid("nats.url is required in nats mode")
		}
		if c.NATS.ReconnectWait <= 0 || c.NATS.Timeout <= 0 || c.NATS.DrainTimeout <= 0 {
			return invalid("nats.reconnect_wait, nats.timeout and nats.drain_timeout must be positive")
		}
	}

	if !validPort(c.Gateway.Port) {
		return invalid("gateway.port %d out of range", c.Gateway.Port)
	}
	if !strings.HasPrefix(c.Gateway.Path, "/") {
		return invalid("gateway.path %q must start with /", c.Gateway.Path)
	}
	if c.Gateway.RateLimit < 0 {
		return invalid("gateway.rate_limit %d must not be negative", c.Gateway.RateLimit)
	}
	if c.Gateway.RateLimit > 0 && c.Gateway.RateBurst < 1 {
		return invalid("gateway.rate_burst must be at least 1 when rate_limit is set")
	}
	if c.Metrics.Enabled {
		if !validPort(c.Metrics.Port) {
			return invalid("metrics.port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Gateway.Port {
			return invalid("metrics.port and gateway.port must differ")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path %q must start with /", c.Metrics.Path)
		}
		if c.Metrics.Path == "/healthz" {
			return invalid("metrics.path /healthz is reserved for the health endpoint")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q unknown", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format %q must be json or text", c.Log.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Config", "Validate", "check configuration")
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	// Every field is a value type.
	copied := *c
	return &copied
}

// String returns a JSON representation of the config
// String renders c as indented JSON with NATS secrets masked.
func (c *Config) String() string {
	masked := *c
	for _, secret := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *secret != "" {
			*secret = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
