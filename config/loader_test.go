package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeConfig(t, "wdat.yaml", `
server:
  base_url: https://gnode.example.org
  timeout: 10s
  compression: false
cache:
  capacity: 50
nats:
  reconnect_wait: 500ms
`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gnode.example.org", cfg.Server.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout.Duration())
	assert.False(t, cfg.Server.Compression)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait.Duration())

	// Untouched sections keep their defaults
	assert.Equal(t, 2, cfg.Server.MaxDepth)
	assert.Equal(t, WorkerModeWorker, cfg.Worker.Mode)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, 100, cfg.Gateway.RateLimit)
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeConfig(t, "wdat.json", `{
		"server": {"base_url": "http://repo:8000", "max_depth": 1},
		"worker": {"mode": "inline"},
		"log": {"level": "debug", "format": "text"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://repo:8000", cfg.Server.BaseURL)
	assert.Equal(t, 1, cfg.Server.MaxDepth)
	assert.Equal(t, WorkerModeInline, cfg.Worker.Mode)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoader_Layers(t *testing.T) {
	base := writeConfig(t, "base.yaml", `
server:
  base_url: http://localhost:8000
  breaker:
    enabled: true
    max_failures: 2
worker:
  workers: 2
`)
	override := writeConfig(t, "prod.yaml", `
server:
  base_url: https://gnode.example.org
  breaker:
    open_timeout: 1m
`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gnode.example.org", cfg.Server.BaseURL)
	assert.True(t, cfg.Server.Breaker.Enabled)
	assert.Equal(t, uint32(2), cfg.Server.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Server.Breaker.OpenTimeout.Duration())
	assert.Equal(t, 2, cfg.Worker.Workers)
}

func TestLoader_NoLayers(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.BaseURL, cfg.Server.BaseURL)
}

func TestLoader_EmptyFile(t *testing.T) {
	cfg, err := NewLoader().LoadFile(writeConfig(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Cache.Capacity, cfg.Cache.Capacity)
}

func TestLoader_SchemaErrors(t *testing.T) {
	_, err := NewLoader().LoadFile("testdata/invalid.json")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "server.timeout")
	assert.Contains(t, err.Error(), "worker.mode")
}

func TestLoader_UnknownKey(t *testing.T) {
	path := writeConfig(t, "wdat.yaml", "server:\n  base_url: http://localhost:8000\n  retries: 3\n")

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestLoader_ValidationDisabled(t *testing.T) {
	path := writeConfig(t, "wdat.yaml", "worker:\n  mode: thread\n")

	loader := NewLoader()
	loader.EnableValidation(false)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "thread", cfg.Worker.Mode)
}

func TestLoader_SemanticValidation(t *testing.T) {
	// Passes the schema, fails the cross-field check
	path := writeConfig(t, "wdat.yaml", "gateway:\n  port: 9090\nmetrics:\n  port: 9090\n")

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoader_BadFiles(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
	t.Run("extension", func(t *testing.T) {
		_, err := NewLoader().LoadFile(writeConfig(t, "wdat.toml", "a = 1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only YAML or JSON")
	})
	t.Run("syntax", func(t *testing.T) {
		_, err := NewLoader().LoadFile(writeConfig(t, "wdat.yaml", "server: [unclosed"))
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})
	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "conf.yaml")
		require.NoError(t, os.Mkdir(dir, 0o755))
		_, err := NewLoader().LoadFile(dir)
		assert.Error(t, err)
	})
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("WDAT_SERVER_BASE_URL", "https://env.example.org")
	t.Setenv("WDAT_SERVER_TIMEOUT", "3s")
	t.Setenv("WDAT_WORKER_MODE", "inline")
	t.Setenv("WDAT_WORKER_WORKERS", "3")
	t.Setenv("WDAT_METRICS_ENABLED", "false")
	t.Setenv("WDAT_LOG_LEVEL", "debug")

	path := writeConfig(t, "wdat.yaml", "server:\n  base_url: http://file:8000\n")
	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.org", cfg.Server.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Server.Timeout.Duration())
	assert.Equal(t, WorkerModeInline, cfg.Worker.Mode)
	assert.Equal(t, 3, cfg.Worker.Workers)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_EnvPrefix(t *testing.T) {
	t.Setenv("LAB_CACHE_CAPACITY", "7")

	loader := NewLoader()
	loader.SetEnvPrefix("LAB_")
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cache.Capacity)
}

func TestLoader_EnvOverrideInvalid(t *testing.T) {
	t.Setenv("WDAT_GATEWAY_PORT", "eighty")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "WDAT_GATEWAY_PORT")
}

func TestLoader_EnvOverrideValidated(t *testing.T) {
	t.Setenv("WDAT_WORKER_MODE", "thread")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestDeepMergeMaps(t *testing.T) {
	base := map[string]any{
		"server": map[string]any{"base_url": "a", "timeout": "1s"},
		"log":    map[string]any{"level": "info"},
	}
	override := map[string]any{
		"server": map[string]any{"base_url": "b"},
		"log":    nil,
	}

	merged := deepMergeMaps(base, override)
	assert.Equal(t, map[string]any{"base_url": "b", "timeout": "1s"}, merged["server"])
	assert.Equal(t, map[string]any{"level": "info"}, merged["log"])
	assert.Equal(t, "a", base["server"].(map[string]any)["base_url"], "base is not modified")
}
