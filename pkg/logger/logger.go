// Package logger provides structured logging for aidetector.
//
// The logger emits JSON for log aggregators or human-readable text for local
// use. The format is chosen by configuration (log.format), not by inspecting
// the environment.
//
// Usage:
//
//	log := logger.New("info", "text")
//	log.Info("server started", "port", 8080)
//
// Output (json):
//
//	{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"server started","port":8080}
//
// Output (text):
//
//	time=2026-01-01T00:00:00Z level=INFO msg="server started" port=8080
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger is a structured logger wrapper.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stderr with the given level and format.
// Valid levels: debug, info, warn, error (case-insensitive).
// Valid formats: text, json. Unknown values fall back to info and text.
func New(level, format string) *Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a Logger that writes to w.
func NewWithWriter(level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if parseFormat(format) == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(handler)}
}

// parseLevel converts a string level to slog.Level.
// Defaults to Info if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return FormatJSON
	}
	return FormatText
}

// With returns a new Logger with the given attributes added.
//
//	reqLog := log.With("request_id", "abc123", "file", "cat.png")
//	reqLog.Info("analysis started")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// WithContext returns a Logger carrying the request ID stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := ctx.Value(ContextKeyRequestID); reqID != nil {
		return l.With("request_id", reqID)
	}
	return l
}

// ContextKey is the type for context keys to avoid collisions.
type ContextKey string

// ContextKeyRequestID holds the per-request correlation ID set by middleware.
const ContextKeyRequestID ContextKey = "request_id"

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// NopLogger returns a logger that discards all output.
func NopLogger() *Logger {
	return NewWithWriter("error", FormatText, io.Discard)
}
