// Package logger wraps log/slog with MoonSQL's level configuration
// (SPEC_FULL.md §10.2). Structured logs go to stderr so stdout stays
// reserved for --show output.
package logger

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog default logger at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// info), writing text-formatted records to stderr.
func Init(level string, verbose bool) *slog.Logger {
	lvl := parseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
