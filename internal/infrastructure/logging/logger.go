// Package logging builds the service's slog logger and carries per-request
// fields (request, caller, report view) through the context so every log line
// written with a *Context method is stamped with them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

type ctxKey struct{}

// requestFields are the values stamped on every record logged with a context.
type requestFields struct {
	requestID  string
	userID     string
	reportView string
}

func (f requestFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 3)
	if f.requestID != "" {
		attrs = append(attrs, slog.String("request_id", f.requestID))
	}
	if f.userID != "" {
		attrs = append(attrs, slog.String("user_id", f.userID))
	}
	if f.reportView != "" {
		attrs = append(attrs, slog.String("report_view", f.reportView))
	}
	return attrs
}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(ctxKey{}).(requestFields)
	return f
}

func withFields(ctx context.Context, update func(*requestFields)) context.Context {
	f := fieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, ctxKey{}, f)
}

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Environment string
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "field-metrics",
		Environment: "development",
	}
}

// NewLogger creates the service logger. Service and environment are attached
// once; request fields are read from the context on each record.
func NewLogger(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	})
	return slog.New(contextHandler{next: handler})
}

// contextHandler stamps request fields from the context before delegating.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(fieldsFrom(ctx).attrs()...)
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.requestID = requestID })
}

// WithUserID adds the authenticated caller to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.userID = userID })
}

// WithReportView tags the context with the view being assembled
func WithReportView(ctx context.Context, view string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.reportView = view })
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// LoggerFromContext binds the context's request fields to logger, for code
// that logs without passing ctx.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := fieldsFrom(ctx).attrs()
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LogPanic logs a recovered panic value with the goroutine's stack.
func LogPanic(logger *slog.Logger, panicValue any) {
	logger.Error("panic recovered",
		"panic", panicValue,
		"stack_trace", string(debug.Stack()),
	)
}

// RequestEntry describes one served HTTP request.
type RequestEntry struct {
	Method       string
	Path         string
	Status       int
	Duration     time.Duration
	BytesWritten int64
	ClientIP     string
	UserAgent    string
}

// LogRequest writes entry at a level chosen by its status: 5xx error, 4xx
// warn, anything else info.
func LogRequest(ctx context.Context, logger *slog.Logger, entry RequestEntry) {
	level := slog.LevelInfo
	switch {
	case entry.Status >= 500:
		level = slog.LevelError
	case entry.Status >= 400:
		level = slog.LevelWarn
	}

	logger.LogAttrs(ctx, level, "http request",
		slog.String("method", entry.Method),
		slog.String("path", entry.Path),
		slog.Int("status_code", entry.Status),
		slog.Int64("duration_ms", entry.Duration.Milliseconds()),
		slog.Int64("bytes_written", entry.BytesWritten),
		slog.String("client_ip", entry.ClientIP),
		slog.String("user_agent", entry.UserAgent),
	)
}
