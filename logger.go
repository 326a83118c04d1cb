// Structured logging setup for the package. Diagnostics (skipped
// files, dropped prefixes, per-entry extraction failures) go through
// slog so they can be leveled and redirected independently of the
// result stream.

package gobottleneck

import (
	"io"
	"log/slog"
)

// SetupLogging installs the default logger used by the rest of the
// package, writing to w in the requested format ("text" or "json").
func SetupLogging(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func withComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
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
