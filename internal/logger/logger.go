// Package logger builds the structured slog loggers used across the
// schemarecall service.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultServiceName is attached to every record as the "service" attribute.
const DefaultServiceName = "schemarecall"

// ParseLevel converts a string level to a slog.Level. Unknown values map to
// slog.LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w with the given level and format. A nil
// writer means os.Stderr; stdout is reserved for the MCP stdio transport.
func New(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: ParseLevel(level) == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", DefaultServiceName)
}

// WithComponent returns a child logger tagged with the component name, the
// slog counterpart of a context path.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// Truncate shortens s to at most n runes for log output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
