package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), &Config{ServiceName: "print-quote-service"})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(&Config{ServiceName: "print-quote-service", Version: "1.4.0", Environment: "qa"})
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}

	assert.Equal(t, "print-quote-service", attrs["service.name"])
	assert.Equal(t, "1.4.0", attrs["service.version"])
	assert.Equal(t, "qa", attrs["deployment.environment"])
}

// installTestProviders swaps the otel globals for in-memory ones.
func installTestProviders(t *testing.T) (*tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()

	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()

	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	return recorder, reader
}

func requestTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}

func TestMiddleware(t *testing.T) {
	recorder, reader := installTestProviders(t)

	engine := gin.New()
	engine.Use(TracingMiddleware("print-quote-service"), Middleware("print-quote-service"))
	engine.GET("/api/v1/quotes/config/materials", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/config/materials", nil))
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), w.Header().Get("X-Trace-ID"))

	probe := httptest.NewRecorder()
	engine.ServeHTTP(probe, httptest.NewRequest(http.MethodGet, "/-/live", nil))
	require.Equal(t, http.StatusOK, probe.Code)

	assert.Empty(t, probe.Header().Get("X-Trace-ID"), "probes are not traced")
	assert.Len(t, recorder.Ended(), 1)
	assert.Equal(t, int64(1), requestTotal(t, reader), "probes are not counted")
}
