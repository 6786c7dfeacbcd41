package raggo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with raggo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithQueryID adds a query_id field to the logger, tagging all stage logs of
// one query.
func (l *Logger) WithQueryID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query_id", id),
	}
}

// LogStage logs a completed pipeline stage transition with its elapsed time.
func (l *Logger) LogStage(ctx context.Context, stage Stage, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			"stage", stage.String(),
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stage completed",
			"stage", stage.String(),
			"elapsed", elapsed,
		)
	}
}

// LogStageDegraded logs a stage that fell back instead of failing the query.
func (l *Logger) LogStageDegraded(ctx context.Context, stage Stage, reason string, err error) {
	l.WarnContext(ctx, "stage degraded",
		"stage", stage.String(),
		"reason", reason,
		"error", err,
	)
}

// LogQuery logs a finished query.
func (l *Logger) LogQuery(ctx context.Context, candidates, citations int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "query completed",
			"candidates", candidates,
			"citations", citations,
			"elapsed", elapsed,
		)
	}
}

// LogIndexChunks logs a chunk ingestion batch.
func (l *Logger) LogIndexChunks(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index chunks failed",
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index chunks completed",
			"count", count,
		)
	}
}

// LogDelete logs a tombstone operation.
func (l *Logger) LogDelete(ctx context.Context, target string, affected int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"target", target,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"target", target,
			"affected", affected,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"name", name,
		)
	}
}
