package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/G-Node/wdat2-sub001/errors"
)

const (
	maxFileSize   = 1 << 20
	maxPathLength = 4096
	maxEnvLength  = 8192
)

// checkPath accepts YAML and JSON files only. Relative paths must stay
// below the working directory.
func checkPath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: empty path", errors.ErrMissingConfig)
	case len(path) > maxPathLength:
		return fmt.Errorf("%w: path longer than %d bytes", errors.ErrInvalidConfig, maxPathLength)
	}

	if !filepath.IsAbs(path) {
		rel := filepath.Clean(path)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s leaves the working directory", errors.ErrInvalidConfig, path)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return nil
	}
	return fmt.Errorf("%w: only YAML or JSON files are accepted, got %s", errors.ErrInvalidConfig, path)
}

// readConfigFile reads a regular file of bounded size.
func readConfigFile(path string) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "LoadFile", "check path")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrConfigNotFound, path),
			"Loader", "LoadFile", "stat file")
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Loader", "LoadFile", "stat file")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s is not a regular file", errors.ErrInvalidConfig, path),
			"Loader", "LoadFile", "stat file")
	}
	if info.Size() > maxFileSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s is %d bytes, limit %d", errors.ErrInvalidConfig, path, info.Size(), maxFileSize),
			"Loader", "LoadFile", "stat file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "Loader", "LoadFile", "read file")
	}
	return data, nil
}

// checkEnvValue rejects oversized values and values with NUL bytes.
func checkEnvValue(name, value string) error {
	if len(value) > maxEnvLength {
		return fmt.Errorf("%w: %s longer than %d bytes", errors.ErrInvalidConfig, name, maxEnvLength)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: %s contains a NUL byte", errors.ErrInvalidConfig, name)
	}
	return nil
}
