// Package logging provides structured logging on log/slog: a process-wide
// logger, request-scoped attributes and helpers for the server's recurring
// events.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the handler that renders records.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

var current atomic.Pointer[slog.Logger]

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// ParseLevel accepts slog level names ("debug", "INFO", "warn+2") plus
// "warning". An empty string means info.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// ParseFormat maps "json" and "text" to a Format. An empty string means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// InitLogger installs a process-wide logger writing to stdout.
func InitLogger(level Level, format Format) {
	InitLoggerWithWriter(level, format, os.Stdout)
}

// InitLoggerWithWriter is InitLogger writing to w. The logger also becomes
// slog's default.
func InitLoggerWithWriter(level Level, format Format, w io.Writer) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: rfc3339Time,
	}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if format == FormatText {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
}

// rfc3339Time renders top-level record times at second precision.
func rfc3339Time(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// GetLogger returns the process-wide logger.
func GetLogger() *slog.Logger {
	return current.Load()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// LoggerFromContext returns the process-wide logger carrying the
// context's request ID, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := GetLogger()
	if id := GetRequestID(ctx); id != "" {
		return l.With("request_id", id)
	}
	return l
}

func Debug(msg string, args ...any) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...any) { GetLogger().Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// emit logs an event record: the fixed fields first, then the caller's.
func emit(l *slog.Logger, level Level, event string, fields, extra []any) {
	l.Log(context.Background(), level, event, append(fields, extra...)...)
}

// HTTPRequestContext writes the access-log line for one request.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	emit(LoggerFromContext(ctx), LevelInfo, "http_request", []any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, args)
}

// UpstreamFetch logs one request to the verse-content service at info
// level, or at error level when err is set.
func UpstreamFetch(path string, statusCode int, duration time.Duration, err error, args ...any) {
	fields := []any{
		"path", path,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}
	level := LevelInfo
	if err != nil {
		level = LevelError
		fields = append(fields, "error", err.Error())
	}
	emit(GetLogger(), level, "upstream_fetch", fields, args)
}

// CacheEvent logs cache hits and misses at debug level.
func CacheEvent(event, key string, args ...any) {
	emit(GetLogger(), LevelDebug, "cache_event", []any{"event", event, "key", key}, args)
}

// WebSocketEvent logs reading-sync connection changes.
func WebSocketEvent(event string, clientCount int, args ...any) {
	emit(GetLogger(), LevelInfo, "websocket_event", []any{"event", event, "client_count", clientCount}, args)
}

// ServerStartup logs a listener coming up.
func ServerStartup(serverType, protocol string, port int, args ...any) {
	emit(GetLogger(), LevelInfo, "server_startup", []any{
		"server_type", serverType,
		"protocol", protocol,
		"port", port,
	}, args)
}

// SecurityEvent logs rejected credentials and similar events at warn level.
func SecurityEvent(event, component string, args ...any) {
	emit(GetLogger(), LevelWarn, "security_event", []any{"event", event, "component", component}, args)
}
