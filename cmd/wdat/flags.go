package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/G-Node/wdat2-sub001/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

var (
	validLevels  = []string{"", "debug", "info", "warn", "warning", "error"}
	validFormats = []string{"", "json", "text"}
)

func validateFlags(opts *rootOptions) error {
	if !slices.Contains(validLevels, opts.LogLevel) {
		return fmt.Errorf("invalid log level: %s", opts.LogLevel)
	}
	if !slices.Contains(validFormats, opts.LogFormat) {
		return fmt.Errorf("invalid log format: %s", opts.LogFormat)
	}
	if opts.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", opts.ShutdownTimeout)
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return fmt.Errorf("config file not accessible: %w", err)
		}
	}
	return nil
}

// loadConfig reads the config file when one is given, otherwise the
// defaults. Environment overrides apply either way.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	loader := config.NewLoader()
	if opts.ConfigPath != "" {
		return loader.LoadFile(opts.ConfigPath)
	}
	return loader.Load()
}

// logger builds the process logger. Flags win over the log section of the
// configuration.
func (o *rootOptions) logger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, format := cfg.Log.Level, cfg.Log.Format
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if o.LogFormat != "" {
		format = o.LogFormat
	}
	logger := setupLogger(level, format, w)
	slog.SetDefault(logger)
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
