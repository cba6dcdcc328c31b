package middleware

import (
	"context"
	"net/http"
)

// tracking holds the IDs forwarded on outbound calls such as the CRM webhook.
// It is stored by value, so setting one ID never changes a parent context.
type tracking struct {
	requestID     string
	correlationID string
}

type trackingKey struct{}

func trackingFrom(ctx context.Context) tracking {
	if ctx == nil {
		return tracking{}
	}

	t, _ := ctx.Value(trackingKey{}).(tracking)

	return t
}

// RequestIDFromContext returns the request ID set by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	return trackingFrom(ctx).requestID
}

// CorrelationIDFromContext returns the correlation ID set by the
// CorrelationID middleware.
func CorrelationIDFromContext(ctx context.Context) string {
	return trackingFrom(ctx).correlationID
}

// ContextWithRequestID returns a copy of ctx carrying id as the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	t := trackingFrom(ctx)
	t.requestID = id

	return context.WithValue(ctx, trackingKey{}, t)
}

// ContextWithCorrelationID returns a copy of ctx carrying id as the
// correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	t := trackingFrom(ctx)
	t.correlationID = id

	return context.WithValue(ctx, trackingKey{}, t)
}

// PropagateHeaders writes the IDs carried by ctx onto h. Unset IDs are left
// out so a downstream service can start its own.
func PropagateHeaders(ctx context.Context, h http.Header) {
	t := trackingFrom(ctx)

	if t.requestID != "" {
		h.Set(HeaderRequestID, t.requestID)
	}

	if t.correlationID != "" {
		h.Set(HeaderCorrelationID, t.correlationID)
	}
}
