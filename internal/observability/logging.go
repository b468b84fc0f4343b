// Package observability carries run-scoped logging context and builds the process logger.
package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	RunID   string
	Project string
	Stage   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RunID = runID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithProject adds the project being worked on to the context.
func WithProject(ctx context.Context, project string) context.Context {
	lc := extractLogContext(ctx)
	lc.Project = project
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name (traverse, install) to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

// RunIDFrom returns the run ID stored in ctx, if any.
func RunIDFrom(ctx context.Context) string {
	return extractLogContext(ctx).RunID
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 3)
	if lc.RunID != "" {
		attrs = append(attrs, logfields.RunID(lc.RunID))
	}
	if lc.Project != "" {
		attrs = append(attrs, logfields.Project(lc.Project))
	}
	if lc.Stage != "" {
		attrs = append(attrs, slog.String("stage", lc.Stage))
	}
	return attrs
}

// ContextAttrs returns the run, project and stage attributes stored in ctx.
func ContextAttrs(ctx context.Context) []slog.Attr {
	return getLogAttrs(ctx)
}

func logContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	slog.LogAttrs(ctx, level, msg, append(getLogAttrs(ctx), attrs...)...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelDebug, msg, attrs)
}
