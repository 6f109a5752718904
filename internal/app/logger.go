package app

import (
	"io"
	"log/slog"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ValidLogLevel reports whether s names a supported logging level.
func ValidLogLevel(s string) bool {
	_, ok := logLevels[s]
	return ok
}

// ValidLogFormat reports whether s names a supported log output format.
func ValidLogFormat(s string) bool {
	return s == "text" || s == "json"
}

// newLogger builds a slog.Logger writing to outW. Unknown levels fall
// back to info. The global logger is left untouched so concurrent
// compilations can carry isolated loggers.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, ok := logLevels[levelStr]
	if !ok {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
