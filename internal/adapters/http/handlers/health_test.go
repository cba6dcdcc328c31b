package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/print-quote-service/internal/mocks"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewBuildInfo(t *testing.T) {
	bi := NewBuildInfo("1.0.0", "abc123", "2026-01-15T10:00:00Z")

	assert.Equal(t, "1.0.0", bi.Version)
	assert.Equal(t, "abc123", bi.Commit)
	assert.Equal(t, "2026-01-15T10:00:00Z", bi.BuildTime)
	assert.Equal(t, runtime.Version(), bi.GoVersion)
}

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler(mocks.NewMockHealthRegistry(t), BuildInfo{}, nil)
	handler.now = func() time.Time { return handler.started.Add(90 * time.Second) }

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/-/live", nil)

	handler.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var resp livenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, livenessResponse{Status: "ok", UptimeSeconds: 90}, resp)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name           string
		result         *ports.HealthResult
		expectedStatus int
		expectedBody   string
		wantFailing    []string
	}{
		{
			name: "all checks healthy",
			result: &ports.HealthResult{
				Status: ports.HealthStatusHealthy,
				Checks: map[string]*ports.CheckResult{
					"redis": {Status: ports.HealthStatusHealthy},
					"crm":   {Status: ports.HealthStatusHealthy},
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "healthy",
		},
		{
			name: "crm down only degrades",
			result: &ports.HealthResult{
				Status: ports.HealthStatusDegraded,
				Checks: map[string]*ports.CheckResult{
					"redis": {Status: ports.HealthStatusHealthy, Critical: true},
					"crm":   {Status: ports.HealthStatusUnhealthy, Message: "circuit breaker open"},
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "degraded",
			wantFailing:    []string{"crm"},
		},
		{
			name: "storage unhealthy",
			result: &ports.HealthResult{
				Status: ports.HealthStatusUnhealthy,
				Checks: map[string]*ports.CheckResult{
					"redis": {Status: ports.HealthStatusUnhealthy, Message: "connection refused"},
				},
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "connection refused",
			wantFailing:    []string{"redis"},
		},
		{
			name: "no checks registered",
			result: &ports.HealthResult{
				Status: ports.HealthStatusHealthy,
				Checks: map[string]*ports.CheckResult{},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := mocks.NewMockHealthRegistry(t)
			registry.EXPECT().CheckAll(mock.MatchedBy(func(ctx context.Context) bool {
				_, ok := ctx.Deadline()
				return ok
			})).Return(tt.result)

			handler := NewHealthHandler(registry, BuildInfo{}, nil)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/-/ready", nil)

			handler.Readiness(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantFailing, resp.Failing)
		})
	}
}

func TestHealthHandler_Readiness_RealRegistry(t *testing.T) {
	storage := mocks.NewMockHealthChecker(t)
	storage.EXPECT().Name().Return("dynamodb")
	storage.EXPECT().Check(mock.Anything).Return(errors.New("ResourceNotFoundException"))

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(storage))

	handler := NewHealthHandler(registry, BuildInfo{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/-/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp readinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Checks, "dynamodb")
	assert.Equal(t, ports.HealthStatusUnhealthy, resp.Checks["dynamodb"].Status)
}

func TestHealthHandler_BuildInfoHandler(t *testing.T) {
	buildInfo := BuildInfo{
		Service:   "print-quote-service",
		Storage:   "redis",
		Version:   "1.2.3",
		Commit:    "def456",
		BuildTime: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		GoVersion: "go1.25.0",
	}
	handler := NewHealthHandler(mocks.NewMockHealthRegistry(t), buildInfo, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/-/build", nil)

	handler.BuildInfoHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, buildInfo, resp)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quotes_test_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	w := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "quotes_test_total 1")
}

func TestHealthHandler_RegisterHealthRoutes(t *testing.T) {
	registry := mocks.NewMockHealthRegistry(t)
	registry.EXPECT().CheckAll(mock.Anything).Return(&ports.HealthResult{
		Status: ports.HealthStatusHealthy,
		Checks: map[string]*ports.CheckResult{},
	}).Maybe()

	handler := NewHealthHandler(registry, BuildInfo{Version: "test"}, prometheus.NewRegistry())

	router := gin.New()
	handler.RegisterHealthRoutes(router.Group("/-"))

	routeMap := make(map[string]bool)
	for _, r := range router.Routes() {
		routeMap[r.Method+" "+r.Path] = true
	}

	for _, expected := range []string{"GET /-/live", "GET /-/ready", "GET /-/build", "GET /-/metrics"} {
		assert.True(t, routeMap[expected], "missing route: %s", expected)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
