package observability

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// ParseLevel maps a level name to a slog level; unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// NewLogger builds a logger writing to w. Formats: "json", "pretty" (colourised,
// for terminals) and "text" (the default).
func NewLogger(format string, level slog.Level, w io.Writer) *slog.Logger {
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "pretty":
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           charmlog.Level(level),
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
}
