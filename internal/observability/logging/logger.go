// Package logging builds the service loggers on log/slog and carries a
// request-scoped logger through context so handlers log with the
// request ID attached.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"quotaguard/internal/handler/http/requestid"
	"quotaguard/pkg/config"
)

// NewLogger builds the process logger from the environment. LOG_LEVEL
// selects debug, info, warn or error (default info); LOG_FORMAT=text
// switches the JSON output to the human-readable handler for local
// runs.
func NewLogger() *slog.Logger {
	level := parseLevel(config.GetEnvString("LOG_LEVEL", "info"))
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations matter for warn and error lines; skip the
		// overhead when only those levels are emitted anyway.
		AddSource: level <= slog.LevelWarn,
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if config.GetEnvString("LOG_FORMAT", "json") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
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

// WithRequestID attaches the request ID from ctx so every line a
// handler logs can be matched to the access log entry. Without an ID
// the logger is returned unchanged.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := requestid.FromContext(ctx)
	if id == "" {
		return logger
	}
	return logger.With(slog.String("request_id", id))
}

// WithFields labels a logger with a fixed set of fields, such as the
// binary name both commands stamp on every line.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

type ctxKey struct{}

// WithLogger stores a logger in ctx for handlers downstream.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or the default
// logger when the middleware chain did not run.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
