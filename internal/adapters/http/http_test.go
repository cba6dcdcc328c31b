package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/mesh"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/storage"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig(maxRequestSize int64) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: maxRequestSize,
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedField  string
	}{
		{
			name:           "nil error returns 200",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown quote returns 404",
			err:            domain.NewNotFoundError("quote", "q-1"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrorCodeNotFound,
		},
		{
			name:           "expired quote returns 410",
			err:            domain.NewGoneError("quote", "q-1"),
			expectedStatus: http.StatusGone,
			expectedCode:   dto.ErrorCodeGone,
		},
		{
			name:           "concurrent update returns 409",
			err:            domain.NewVersionConflictError("quote", 2, 3),
			expectedStatus: http.StatusConflict,
			expectedCode:   dto.ErrorCodeConflict,
		},
		{
			name:           "validation error carries its field",
			err:            domain.NewValidationError("materials", "Invalid material type: PLA"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrorCodeValidation,
			expectedField:  "materials",
		},
		{
			name:           "unreadable mesh returns 422",
			err:            domain.NewProcessingError("Processing error for part.stl", errors.New("truncated")),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   dto.ErrorCodeProcessing,
		},
		{
			name:           "storage outage returns 503",
			err:            domain.NewUnavailableError("redis", "connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   dto.ErrorCodeUnavailable,
		},
		{
			name:           "wrapped validation error keeps its status",
			err:            fmt.Errorf("validate failed: %w", domain.NewValidationError("files", "No files uploaded")),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrorCodeValidation,
			expectedField:  "files",
		},
		{
			name:           "unknown error returns 500",
			err:            errors.New("disk on fire"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.expectedStatus, status)

			if tt.err == nil {
				assert.Nil(t, resp)
				return
			}

			require.NotNil(t, resp)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)

			if tt.expectedField != "" {
				assert.Contains(t, resp.Error.Details, tt.expectedField)
			}
		})
	}
}

func TestRespondWithError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/quotes/q-1", nil)
	c.Request.Header.Set(middleware.HeaderRequestID, "req-42")

	RespondWithError(c, domain.NewUnavailableError("dynamodb", "throttled"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, dto.ErrorCodeUnavailable, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "dynamodb", "dependency names stay out of responses")
	assert.Equal(t, "req-42", resp.TraceID)
}

func TestRespondWithErrorCode(t *testing.T) {
	tests := []struct {
		code           string
		expectedStatus int
	}{
		{dto.ErrorCodeNotFound, http.StatusNotFound},
		{dto.ErrorCodeValidation, http.StatusBadRequest},
		{dto.ErrorCodeBadRequest, http.StatusBadRequest},
		{dto.ErrorCodeProcessing, http.StatusUnprocessableEntity},
		{dto.ErrorCodeGone, http.StatusGone},
		{dto.ErrorCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{dto.ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{dto.ErrorCodeTimeout, http.StatusGatewayTimeout},
		{dto.ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/test", nil)

			RespondWithErrorCode(c, tt.code, "message")

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "message", resp.Error.Message)
		})
	}
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig(1 << 20)
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.IsType(t, &gin.Engine{}, srv.Engine())
	assert.Equal(t, cfg, srv.Config())
	assert.Equal(t, logger, srv.logger)
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 3000, "0.0.0.0:3000"},
		{"::1", 9090, "[::1]:9090"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := testServerConfig(1 << 20)
			cfg.Host = tt.host
			cfg.Port = tt.port

			assert.Equal(t, tt.want, New(cfg, discardLogger()).Addr())
		})
	}
}

func TestServerStartShutdown(t *testing.T) {
	srv := New(testServerConfig(1<<20), discardLogger())
	srv.Engine().GET("/-/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	errCh, err := srv.Start()
	require.NoError(t, err)

	addr := srv.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr, "Addr reports the bound port")

	resp, err := http.Get("http://" + addr + "/-/live")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		assert.NoError(t, err)
		assert.False(t, ok, "error channel is closed after shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStart_AddressInUse(t *testing.T) {
	first := New(testServerConfig(1<<20), discardLogger())
	_, err := first.Start()
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	cfg := testServerConfig(1 << 20)
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(cfg, discardLogger()).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	srv := New(testServerConfig(100), discardLogger())
	srv.Engine().POST("/test", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": len(body)})
	})

	t.Run("body under limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("small")))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("body over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(make([]byte, 500))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, dto.ErrorCodePayloadTooLarge, resp.Error.Code)
		assert.Equal(t, "request body exceeds 100 bytes", resp.Error.Message)
	})
}

func newTestHandlers(t *testing.T) (*handlers.HealthHandler, *handlers.QuoteHandler, *handlers.ConfigHandler) {
	t.Helper()

	logger := discardLogger()
	metrics := app.NewMetrics(nil)

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Repository: storage.NewMemoryRepository(),
		Pricing: domain.NewPricingEngine(domain.PricingConfig{
			Currency:     "USD",
			MinimumOrder: 20,
			Rates:        domain.MaterialRates{PA12Grey: 0.50, PA12Black: 0.55, PA12GB: 0.60},
		}),
		Analyzer: app.NewAnalyzer(mesh.NewSTLLoader(), app.AnalyzerConfig{
			AllowedExtensions: []string{".stl"},
			MaxFileSize:       1 << 20,
			Envelope:          app.BuildEnvelope{MaxX: 380, MaxY: 284, MaxZ: 380},
		}, logger, metrics),
		Metrics: metrics,
		Logger:  logger,
	})

	health := handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.BuildInfo{Version: "1.0.0"}, prometheus.NewRegistry())

	return health, handlers.NewQuoteHandler(service, t.TempDir()), handlers.NewConfigHandlerFromService(service)
}

func TestNewDefaultRouterConfig(t *testing.T) {
	logger := discardLogger()
	health, quotes, cfgHandler := newTestHandlers(t)

	cfg := NewDefaultRouterConfig(logger, "print-quote-service", health, quotes, cfgHandler)

	assert.Equal(t, logger, cfg.Logger)
	assert.Equal(t, "print-quote-service", cfg.ServiceName)
	assert.Equal(t, health, cfg.HealthHandler)
	assert.Equal(t, quotes, cfg.QuoteHandler)
	assert.Equal(t, cfgHandler, cfg.ConfigHandler)
	assert.Equal(t, DefaultRequestTimeout, cfg.Timeout)
}

func TestSetupMinimalRouter(t *testing.T) {
	engine := gin.New()
	health, _, _ := newTestHandlers(t)

	SetupMinimalRouter(engine, discardLogger(), health)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	require.NotPanics(t, func() {
		SetupMinimalRouter(gin.New(), discardLogger(), nil)
	})
}

func TestSetupRouter(t *testing.T) {
	health, quotes, cfgHandler := newTestHandlers(t)

	engine := gin.New()
	SetupRouter(engine, NewDefaultRouterConfig(discardLogger(), "print-quote-service", health, quotes, cfgHandler))

	routes := make(map[string]bool)
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, expected := range []string{
		"GET /-/live",
		"GET /-/ready",
		"GET /-/metrics",
		"POST /api/v1/quotes/upload",
		"GET /api/v1/quotes",
		"GET /api/v1/quotes/:quote_id",
		"GET /api/v1/quotes/:quote_id/breakdown",
		"POST /api/v1/quotes/:quote_id/update",
		"DELETE /api/v1/quotes/:quote_id",
		"GET /api/v1/quotes/config/materials",
		"GET /api/v1/quotes/config/shipping",
		"GET /api/v1/quotes/config/printer",
	} {
		assert.True(t, routes[expected], "missing route: %s", expected)
	}

	t.Run("ids are echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)
		req.Header.Set(middleware.HeaderCorrelationID, "corr-1")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
		assert.Equal(t, "corr-1", w.Header().Get(middleware.HeaderCorrelationID))
		assert.JSONEq(t, `{"items":[],"limit":50,"offset":0}`, w.Body.String())
	})

	t.Run("config is served ahead of quote lookup", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/config/printer", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"supported_formats":["stl"]`)
	})

	t.Run("unknown routes use the error envelope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil)
		req.Header.Set(middleware.HeaderRequestID, "req-404")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, dto.ErrorCodeNotFound, resp.Error.Code)
		assert.Equal(t, "req-404", resp.TraceID)
	})
}

func TestSetupRouter_WithoutOptionalHandlers(t *testing.T) {
	require.NotPanics(t, func() {
		SetupRouter(gin.New(), RouterConfig{Logger: discardLogger(), ServiceName: "test"})
	})
}
