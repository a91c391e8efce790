package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/G-Node/wdat2-sub001/errors"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "WDAT"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader with validation enabled
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier
// ones key by key.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables schema and semantic validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges the defaults, every layer and the environment, in that order.
// With validation on, the merged document is checked against the schema
// before decoding and the result is checked with Validate.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		merged = deepMergeMaps(merged, raw)
	}

	document, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"Loader", "Load", "encode merged layers")
	}

	if l.validation {
		if err := ValidateSchema(document); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := json.Unmarshal(document, &cfg); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"Loader", "Load", "decode configuration")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadRaw reads a YAML or JSON file as a map. JSON is read by the YAML
// decoder as well.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies PREFIX_SECTION_KEY environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"SERVER_BASE_URL":     &cfg.Server.BaseURL,
		"WORKER_MODE":         &cfg.Worker.Mode,
		"NATS_URL":            &cfg.NATS.URL,
		"NATS_SUBJECT_PREFIX": &cfg.NATS.SubjectPrefix,
		"NATS_NAME":           &cfg.NATS.Name,
		"NATS_USER":           &cfg.NATS.User,
		"NATS_PASSWORD":       &cfg.NATS.Password,
		"NATS_TOKEN":          &cfg.NATS.Token,
		"GATEWAY_PATH":        &cfg.Gateway.Path,
		"METRICS_PATH":        &cfg.Metrics.Path,
		"LOG_LEVEL":           &cfg.Log.Level,
		"LOG_FORMAT":          &cfg.Log.Format,
	}
	ints := map[string]*int{
		"SERVER_MAX_DEPTH":    &cfg.Server.MaxDepth,
		"CACHE_CAPACITY":      &cfg.Cache.Capacity,
		"WORKER_WORKERS":      &cfg.Worker.Workers,
		"WORKER_QUEUE_SIZE":   &cfg.Worker.QueueSize,
		"NATS_MAX_RECONNECTS": &cfg.NATS.MaxReconnects,
		"GATEWAY_PORT":        &cfg.Gateway.Port,
		"GATEWAY_RATE_LIMIT":  &cfg.Gateway.RateLimit,
		"GATEWAY_RATE_BURST":  &cfg.Gateway.RateBurst,
		"METRICS_PORT":        &cfg.Metrics.Port,
	}
	bools := map[string]*bool{
		"SERVER_COMPRESSION":     &cfg.Server.Compression,
		"SERVER_BREAKER_ENABLED": &cfg.Server.Breaker.Enabled,
		"METRICS_ENABLED":        &cfg.Metrics.Enabled,
	}
	durations := map[string]*Duration{
		"SERVER_TIMEOUT":      &cfg.Server.Timeout,
		"NATS_RECONNECT_WAIT": &cfg.NATS.ReconnectWait,
		"NATS_TIMEOUT":        &cfg.NATS.Timeout,
		"NATS_DRAIN_TIMEOUT":  &cfg.NATS.DrainTimeout,
	}

	for key, dst := range strs {
		if val, ok := l.env(key); ok {
			*dst = val
		}
	}
	for key, dst := range ints {
		if val, ok := l.env(key); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				return l.envError(key, val)
			}
			*dst = n
		}
	}
	for key, dst := range bools {
		if val, ok := l.env(key); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return l.envError(key, val)
			}
			*dst = b
		}
	}
	for key, dst := range durations {
		if val, ok := l.env(key); ok {
			d, err := parseDuration(val)
			if err != nil {
				return l.envError(key, val)
			}
			*dst = Duration(d)
		}
	}
	return nil
}

// env returns a non-empty, sane override for key.
func (l *Loader) env(key string) (string, bool) {
	name := l.envPrefix + "_" + key
	val, ok := l.lookupEnv(name)
	if !ok || val == "" {
		return "", false
	}
	if err := checkEnvValue(name, val); err != nil {
		return "", false
	}
	return val, true
}

func (l *Loader) envError(key, val string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s_%s=%q", errors.ErrInvalidConfig, l.envPrefix, key, val),
		"Loader", "applyEnvOverrides", "parse environment override")
}
