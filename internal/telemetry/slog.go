package telemetry

import (
	"io"
	"log/slog"
	"strings"
)

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from configuration.
//
// format: "json"  → JSONHandler (machine readable; for CI log collectors)
//
//	anything else → TextHandler (human readable)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
//
// Logs go to w, which the CLI sets to stderr: stdout carries the PASS/FAIL transcript
// and must not be interleaved with log records.
func SetupLogger(w io.Writer, format, level string) {
	lvl := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // include file:line only when debugging
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialised", "format", format, "level", lvl.String())
}

// ParseLevel maps a configuration level string to a slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
