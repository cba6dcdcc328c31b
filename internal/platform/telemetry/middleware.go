package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jsamuelsen/print-quote-service/telemetry"

	// internalPrefix marks probe and scrape routes, which are not measured.
	internalPrefix = "/-/"
)

// Metrics holds HTTP server metrics.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	requestBodySize metric.Int64Histogram
}

// NewMetrics creates HTTP server metrics.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestBodySize, err := meter.Int64Histogram(
		"http.server.request.body.size",
		metric.WithDescription("Declared request body size; dominated by mesh uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		activeRequests:  activeRequests,
		requestBodySize: requestBodySize,
	}, nil
}

// Middleware returns Gin middleware recording request metrics and exposing
// the trace ID in the X-Trace-ID response header. Pair it with
// TracingMiddleware, which must run first so a span exists.
func Middleware(serviceName string) gin.HandlerFunc {
	metrics, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
	}

	service := attribute.String("service.name", serviceName)

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, internalPrefix) {
			c.Next()
			return
		}

		start := time.Now()
		ctx := c.Request.Context()

		if metrics != nil {
			attrs := metric.WithAttributes(
				service,
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			)

			metrics.activeRequests.Add(ctx, 1, attrs)
			defer metrics.activeRequests.Add(ctx, -1, attrs)

			if c.Request.ContentLength > 0 {
				metrics.requestBodySize.Record(ctx, c.Request.ContentLength, attrs)
			}
		}

		// Set before c.Next; headers are flushed with the first body write.
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
			c.Header("X-Trace-ID", sc.TraceID().String())
		}

		c.Next()

		if metrics != nil {
			attrs := metric.WithAttributes(
				service,
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
				attribute.Int("http.status_code", c.Writer.Status()),
			)
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			metrics.requestTotal.Add(ctx, 1, attrs)
		}
	}
}

// TracingMiddleware returns the otelgin tracing middleware. Probe routes are
// not traced.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, internalPrefix)
	}))
}
