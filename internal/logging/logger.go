// Package logging provides structured logging configuration using log/slog.
//
// Every import run carries a run id in its context. Loggers obtained through
// [FromContext] include it as run_id, so all entries of one run can be
// correlated in a shared log stream.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const ctxKeyRunID contextKey = "run_id"

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Logs go to stderr; stdout is left for command output.
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
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

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a context carrying id as the run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, id)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the default logger enriched with the run id in ctx.
//
// Usage:
//
//	ctx = logging.WithRunID(ctx, logging.NewRunID())
//	logging.FromContext(ctx).Info("import started", "input", dir)
func FromContext(ctx context.Context) *slog.Logger {
	return With(ctx, slog.Default())
}

// With returns logger enriched with the run id in ctx.
func With(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RunID(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	return logger
}

// WithFields returns logger enriched with the run id in ctx and args.
//
// Usage:
//
//	step := logging.WithFields(ctx, logger, "entity", "occurrence")
//	step.Info("copy started")
//	// ... later ...
//	step.Info("copy completed", "rows", n)
func WithFields(ctx context.Context, logger *slog.Logger, args ...any) *slog.Logger {
	return With(ctx, logger).With(args...)
}
