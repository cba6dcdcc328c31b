package logging

import (
	"context"
	"log/slog"
)

// Attribute keys shared by every request-scoped log line.
const (
	RequestIDKey     = "request_id"
	TraceIDKey       = "trace_id"
	CorrelationIDKey = "correlation_id"
	QuoteIDKey       = "quote_id"
)

type ctxKey struct{}

var defaultLogger = slog.Default()

// Lookup returns the logger stored in ctx, if any.
func Lookup(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}

	logger, ok := ctx.Value(ctxKey{}).(*slog.Logger)

	return logger, ok
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := Lookup(ctx); ok {
		return logger
	}

	return defaultLogger
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// With returns ctx carrying its logger enriched with attrs.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}

	return WithContext(ctx, FromContext(ctx).With(args...))
}

// WithRequestID tags the context logger with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return With(ctx, slog.String(RequestIDKey, requestID))
}

// WithTraceID tags the context logger with the trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return With(ctx, slog.String(TraceIDKey, traceID))
}

// WithCorrelationID tags the context logger with the correlation ID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return With(ctx, slog.String(CorrelationIDKey, correlationID))
}

// WithQuoteID tags the context logger with the quote being worked on, so
// analysis and webhook lines can be joined to the quote.
func WithQuoteID(ctx context.Context, quoteID string) context.Context {
	return With(ctx, slog.String(QuoteIDKey, quoteID))
}

// SetDefault sets the fallback logger and installs it as the slog default.
func SetDefault(logger *slog.Logger) {
	defaultLogger = logger
	slog.SetDefault(logger)
}
