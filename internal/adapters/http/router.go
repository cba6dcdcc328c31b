package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/print-quote-service/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// UploadRoute is exempt from the request timeout: large multi-file uploads
// are bounded by the server read timeout instead.
const UploadRoute = "/api/v1/quotes/upload"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// ServiceName names the service in traces.
	ServiceName string

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler handles the quote API. Nil leaves the API unregistered.
	QuoteHandler *handlers.QuoteHandler

	// ConfigHandler exposes the rate card and printer limits.
	ConfigHandler *handlers.ConfigHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Logging - request logging (skips health endpoints)
//  6. Timeout - request deadline on /api/v1, except uploads
//
// Route groups:
//   - /-/ (internal): health, build info and metrics
//   - /api/v1/ (public API): quotes and pricing configuration
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.ServiceName),
		telemetry.Middleware(cfg.ServiceName),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutes(engine.Group("/-"))
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout, UploadRoute))
	}

	setupAPIRoutes(apiV1, cfg)

	engine.NoRoute(func(c *gin.Context) {
		RespondWithErrorCode(c, dto.ErrorCodeNotFound, "route not found")
	})
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(rg)
	}

	if cfg.ConfigHandler != nil {
		cfg.ConfigHandler.RegisterConfigRoutes(rg)
	}
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for testing or lightweight deployments.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutes(engine.Group("/-"))
	}
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	serviceName string,
	healthHandler *handlers.HealthHandler,
	quoteHandler *handlers.QuoteHandler,
	configHandler *handlers.ConfigHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		ServiceName:   serviceName,
		HealthHandler: healthHandler,
		QuoteHandler:  quoteHandler,
		ConfigHandler: configHandler,
		Timeout:       DefaultRequestTimeout,
	}
}
