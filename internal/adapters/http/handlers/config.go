package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// ConfigHandler exposes the rate card and printer limits the frontend needs
// to render an estimate before upload.
type ConfigHandler struct {
	pricing  domain.PricingConfig
	analyzer app.AnalyzerConfig
	maxFiles int
}

// NewConfigHandler creates a config handler from the pricing rules and
// upload limits in effect.
func NewConfigHandler(pricing domain.PricingConfig, analyzer app.AnalyzerConfig, maxFiles int) *ConfigHandler {
	return &ConfigHandler{
		pricing:  pricing,
		analyzer: analyzer,
		maxFiles: maxFiles,
	}
}

// NewConfigHandlerFromService reads the limits from a configured quote service.
func NewConfigHandlerFromService(service *app.QuoteService) *ConfigHandler {
	analyzer, maxFiles := service.Limits()
	return NewConfigHandler(service.Pricing().Config(), analyzer, maxFiles)
}

// Materials handles GET /api/v1/quotes/config/materials.
func (h *ConfigHandler) Materials(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewMaterialsConfigResponse(h.pricing))
}

// Shipping handles GET /api/v1/quotes/config/shipping.
func (h *ConfigHandler) Shipping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewShippingConfigResponse(h.pricing))
}

// Printer handles GET /api/v1/quotes/config/printer.
func (h *ConfigHandler) Printer(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewPrinterConfigResponse(
		h.analyzer.Envelope.MaxX,
		h.analyzer.Envelope.MaxY,
		h.analyzer.Envelope.MaxZ,
		h.analyzer.AllowedExtensions,
		h.analyzer.MaxFileSize,
		h.maxFiles,
	))
}

// RegisterConfigRoutes registers the config routes under /quotes/config.
func (h *ConfigHandler) RegisterConfigRoutes(rg *gin.RouterGroup) {
	cfg := rg.Group("/quotes/config")
	cfg.GET("/materials", h.Materials)
	cfg.GET("/shipping", h.Shipping)
	cfg.GET("/printer", h.Printer)
}
