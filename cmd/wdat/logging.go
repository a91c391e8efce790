package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// setupLogger builds the process logger. Unknown levels log at info and
// any format but "text" logs JSON. Debug logging adds source locations.
func setupLogger(level, format string, w io.Writer) *slog.Logger {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", appName, "version", Version, "pid", os.Getpid())
}
