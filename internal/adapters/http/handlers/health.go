// Package handlers provides HTTP request handlers for the service.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// readinessTimeout bounds a readiness probe so a hung storage backend
// reports unhealthy instead of stalling the kubelet.
const readinessTimeout = 3 * time.Second

// BuildInfo describes the running binary. Version, Commit and BuildTime are
// set through -ldflags.
type BuildInfo struct {
	Service string `json:"service,omitempty"`

	// Storage is the active quote repository driver.
	Storage string `json:"storage,omitempty"`

	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills in the running Go version.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// HealthHandler serves the /-/ probe, build and metrics endpoints.
type HealthHandler struct {
	registry  ports.HealthRegistry
	buildInfo BuildInfo
	gatherer  prometheus.Gatherer
	started   time.Time
	now       func() time.Time
}

// NewHealthHandler creates a new health handler. Metrics are served from
// gatherer, or from the default prometheus registry when it is nil.
func NewHealthHandler(registry ports.HealthRegistry, buildInfo BuildInfo, gatherer prometheus.Gatherer) *HealthHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &HealthHandler{
		registry:  registry,
		buildInfo: buildInfo,
		gatherer:  gatherer,
		started:   time.Now(),
		now:       time.Now,
	}
}

type livenessResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Liveness reports that the process is serving. It never checks
// dependencies, so a slow store cannot get the pod restarted.
func (h *HealthHandler) Liveness(c *gin.Context) {
	noStore(c)
	c.JSON(http.StatusOK, livenessResponse{
		Status:        "ok",
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
	})
}

type readinessResponse struct {
	Status    string                        `json:"status"`
	Failing   []string                      `json:"failing,omitempty"`
	Checks    map[string]*ports.CheckResult `json:"checks,omitempty"`
	CheckedAt time.Time                     `json:"checked_at"`
}

// Readiness runs every registered check. A failing quote store answers 503
// so traffic is drained; a failing CRM webhook only reports degraded with
// 200, since quotes can still be served.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	result := h.registry.CheckAll(ctx)

	status := http.StatusOK
	if result.Status == ports.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	noStore(c)
	c.JSON(status, readinessResponse{
		Status:    string(result.Status),
		Failing:   result.Failing(),
		Checks:    result.Checks,
		CheckedAt: result.Timestamp,
	})
}

// noStore keeps intermediaries from caching probe answers.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
}

// BuildInfoHandler serves the build metadata.
func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildInfo)
}

// MetricsHandler exposes gatherer for scraping. Collection errors are
// reported in the body rather than failing the whole scrape.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// RegisterHealthRoutes mounts live, ready, build and metrics on rg, which
// the router creates at /-.
func (h *HealthHandler) RegisterHealthRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.BuildInfoHandler)
	rg.GET("/metrics", gin.WrapH(MetricsHandler(h.gatherer)))
}
