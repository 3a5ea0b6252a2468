package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/pscheid92/selectionsync/internal/platform/correlation"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
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

// New returns a correlation-aware logger writing text or json to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(correlation.NewHandler(handler))
}

// InitLogger installs the default logger. Every record carries the display
// slot so logs from all processes of a wall can be merged.
func InitLogger(level, format string, appID int) *slog.Logger {
	logger := New(os.Stdout, level, format).With("app_id", appID)
	slog.SetDefault(logger)
	return logger
}
