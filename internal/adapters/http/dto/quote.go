package dto

import (
	"strings"
	"time"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// Multipart form field names of the upload endpoint.
const (
	FormFiles         = "files"
	FormMaterials     = "materials"
	FormQuantities    = "quantities"
	FormCustomerEmail = "customer_email"
)

// BoundingBoxResponse is an axis-aligned box in millimetres.
type BoundingBoxResponse struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MinZ float64 `json:"min_z"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
	MaxZ float64 `json:"max_z"`
}

// FileResponse is one priced file of a quote.
type FileResponse struct {
	Filename     string              `json:"filename"`
	FileSize     int64               `json:"file_size"`
	Volume       float64             `json:"volume"`
	BoundingBox  BoundingBoxResponse `json:"bounding_box"`
	IsWatertight bool                `json:"is_watertight"`
	Material     domain.Material     `json:"material"`
	Quantity     int                 `json:"quantity"`
	UnitPrice    float64             `json:"unit_price"`
	TotalPrice   float64             `json:"total_price"`
	ProcessedAt  time.Time           `json:"processed_at"`
}

// QuoteResponse is the full view of a quote.
type QuoteResponse struct {
	QuoteID               string              `json:"quote_id"`
	Files                 []FileResponse      `json:"files"`
	Subtotal              float64             `json:"subtotal"`
	ShippingCost          float64             `json:"shipping_cost"`
	Total                 float64             `json:"total"`
	ShippingSize          domain.ShippingSize `json:"shipping_size"`
	EstimatedShippingDays int                 `json:"estimated_shipping_days"`
	CreatedAt             time.Time           `json:"created_at"`
	ExpiresAt             *time.Time          `json:"expires_at,omitempty"`
	IsValid               bool                `json:"is_valid"`
	CustomerEmail         string              `json:"customer_email,omitempty"`
}

// QuoteSummaryResponse is the list view of a quote.
type QuoteSummaryResponse struct {
	QuoteID       string     `json:"quote_id"`
	FileCount     int        `json:"file_count"`
	Total         float64    `json:"total"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsValid       bool       `json:"is_valid"`
	CustomerEmail string     `json:"customer_email,omitempty"`
}

// FileBreakdownResponse is the per-file portion of a pricing breakdown.
type FileBreakdownResponse struct {
	Filename            string          `json:"filename"`
	Material            domain.Material `json:"material"`
	Quantity            int             `json:"quantity"`
	VolumeCM3           float64         `json:"volume_cm3"`
	MaterialCostPerUnit float64         `json:"material_cost_per_unit"`
	MarkupPerUnit       float64         `json:"markup_per_unit"`
	UnitPrice           float64         `json:"unit_price"`
	TotalPrice          float64         `json:"total_price"`
}

// BreakdownResponse explains how a quote total was reached.
type BreakdownResponse struct {
	Currency              string                  `json:"currency"`
	MaterialCost          float64                 `json:"material_cost"`
	QuantityDiscount      float64                 `json:"quantity_discount"`
	Markup                float64                 `json:"markup"`
	Subtotal              float64                 `json:"subtotal"`
	ShippingSize          domain.ShippingSize     `json:"shipping_size"`
	ShippingCost          float64                 `json:"shipping_cost"`
	EstimatedShippingDays int                     `json:"estimated_shipping_days"`
	Total                 float64                 `json:"total"`
	MeetsMinimum          bool                    `json:"meets_minimum"`
	Files                 []FileBreakdownResponse `json:"files"`
}

// ListQuotesRequest holds the query parameters of the list endpoint.
type ListQuotesRequest struct {
	PaginationRequest

	CustomerEmail string `form:"customer_email" json:"customer_email" validate:"omitempty,email"`
}

// Filter converts the request into a repository filter.
func (r *ListQuotesRequest) Filter() domain.QuoteFilter {
	return domain.QuoteFilter{
		CustomerEmail: r.CustomerEmail,
		Limit:         r.GetLimit(),
		Offset:        r.GetOffset(),
	}
}

// FileUpdate changes the quantity and/or material of one file in a quote.
type FileUpdate struct {
	Filename string  `json:"filename" validate:"required,stlfilename"`
	Quantity *int    `json:"quantity" validate:"omitempty,gte=1,lte=1000"`
	Material *string `json:"material" validate:"omitempty,material"`
}

// UpdateQuoteRequest is the body of the update endpoint.
type UpdateQuoteRequest struct {
	FileUpdates []FileUpdate `json:"file_updates" validate:"required,min=1,unique=Filename,dive"`
}

// DeleteQuoteResponse confirms a deletion.
type DeleteQuoteResponse struct {
	Message string `json:"message"`
}

// MaterialResponse describes one orderable material.
type MaterialResponse struct {
	Type        domain.Material `json:"type"`
	Name        string          `json:"name"`
	RatePerCM3  float64         `json:"rate_per_cm3"`
	Description string          `json:"description"`
}

// MaterialsConfigResponse lists materials and order-level pricing rules.
type MaterialsConfigResponse struct {
	Materials    []MaterialResponse `json:"materials"`
	Currency     string             `json:"currency"`
	MinimumOrder float64            `json:"minimum_order"`
}

// ShippingConfigResponse describes the shipping tiers.
type ShippingConfigResponse struct {
	Costs                 map[domain.ShippingSize]float64 `json:"costs"`
	ThresholdsCM3         map[domain.ShippingSize]float64 `json:"thresholds_cm3"`
	EstimatedShippingDays int                             `json:"estimated_shipping_days"`
	Currency              string                          `json:"currency"`
}

// PrinterConfigResponse describes the build envelope and accepted uploads.
type PrinterConfigResponse struct {
	BuildVolume      BuildVolumeResponse `json:"build_volume"`
	SupportedFormats []string            `json:"supported_formats"`
	MaxFileSize      int64               `json:"max_file_size"`
	MaxFiles         int                 `json:"max_files"`
}

// BuildVolumeResponse is the printer envelope in millimetres.
type BuildVolumeResponse struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// optionalTime returns nil for the zero time.
func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

// NewQuoteResponse converts a domain quote into its HTTP view.
func NewQuoteResponse(q *domain.Quote) *QuoteResponse {
	files := make([]FileResponse, 0, len(q.Items))
	for _, li := range q.Items {
		b := li.BoundingBox
		files = append(files, FileResponse{
			Filename: li.Filename,
			FileSize: li.FileSize,
			Volume:   domain.RoundCents(li.Volume),
			BoundingBox: BoundingBoxResponse{
				MinX: b.MinX, MinY: b.MinY, MinZ: b.MinZ,
				MaxX: b.MaxX, MaxY: b.MaxY, MaxZ: b.MaxZ,
			},
			IsWatertight: li.IsWatertight,
			Material:     li.Material,
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
			TotalPrice:   li.TotalPrice,
			ProcessedAt:  li.ProcessedAt,
		})
	}

	return &QuoteResponse{
		QuoteID:               q.ID,
		Files:                 files,
		Subtotal:              q.Subtotal,
		ShippingCost:          q.ShippingCost,
		Total:                 q.Total,
		ShippingSize:          q.ShippingSize,
		EstimatedShippingDays: q.EstimatedShippingDays,
		CreatedAt:             q.CreatedAt,
		ExpiresAt:             optionalTime(q.ExpiresAt),
		IsValid:               q.IsValid,
		CustomerEmail:         q.CustomerEmail,
	}
}

// NewQuoteSummaryResponses converts list results into their HTTP view.
func NewQuoteSummaryResponses(summaries []domain.QuoteSummary) []QuoteSummaryResponse {
	out := make([]QuoteSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, QuoteSummaryResponse{
			QuoteID:       s.ID,
			FileCount:     s.FileCount,
			Total:         s.Total,
			CreatedAt:     s.CreatedAt,
			ExpiresAt:     optionalTime(s.ExpiresAt),
			IsValid:       s.IsValid,
			CustomerEmail: s.CustomerEmail,
		})
	}

	return out
}

// NewBreakdownResponse converts a domain breakdown into its HTTP view.
func NewBreakdownResponse(b domain.Breakdown) *BreakdownResponse {
	files := make([]FileBreakdownResponse, 0, len(b.Files))
	for _, f := range b.Files {
		files = append(files, FileBreakdownResponse{
			Filename:            f.Filename,
			Material:            f.Material,
			Quantity:            f.Quantity,
			VolumeCM3:           f.VolumeCM3,
			MaterialCostPerUnit: f.MaterialCostPerUnit,
			MarkupPerUnit:       f.MarkupPerUnit,
			UnitPrice:           f.UnitPrice,
			TotalPrice:          f.TotalPrice,
		})
	}

	return &BreakdownResponse{
		Currency:              b.Currency,
		MaterialCost:          b.MaterialCost,
		QuantityDiscount:      b.QuantityDiscount,
		Markup:                b.Markup,
		Subtotal:              b.Subtotal,
		ShippingSize:          b.ShippingSize,
		ShippingCost:          b.ShippingCost,
		EstimatedShippingDays: b.EstimatedDays,
		Total:                 b.Total,
		MeetsMinimum:          b.MeetsMinimum,
		Files:                 files,
	}
}

// NewMaterialsConfigResponse describes the rate card's materials.
func NewMaterialsConfigResponse(cfg domain.PricingConfig) *MaterialsConfigResponse {
	materials := make([]MaterialResponse, 0, len(domain.Materials()))
	for _, m := range domain.Materials() {
		materials = append(materials, MaterialResponse{
			Type:        m,
			Name:        m.DisplayName(),
			RatePerCM3:  cfg.Rates.Rate(m),
			Description: m.Description(),
		})
	}

	return &MaterialsConfigResponse{
		Materials:    materials,
		Currency:     cfg.Currency,
		MinimumOrder: cfg.MinimumOrder,
	}
}

// NewShippingConfigResponse describes the rate card's shipping tiers.
func NewShippingConfigResponse(cfg domain.PricingConfig) *ShippingConfigResponse {
	return &ShippingConfigResponse{
		Costs: map[domain.ShippingSize]float64{
			domain.ShippingSmall:  cfg.Shipping.SmallCost,
			domain.ShippingMedium: cfg.Shipping.MediumCost,
			domain.ShippingLarge:  cfg.Shipping.LargeCost,
		},
		ThresholdsCM3: map[domain.ShippingSize]float64{
			domain.ShippingSmall:  cfg.Shipping.SmallThresholdCM3,
			domain.ShippingMedium: cfg.Shipping.MediumThresholdCM3,
		},
		EstimatedShippingDays: cfg.EstimatedShippingDays,
		Currency:              cfg.Currency,
	}
}

// NewPrinterConfigResponse describes the build envelope and upload limits.
func NewPrinterConfigResponse(x, y, z float64, formats []string, maxFileSize int64, maxFiles int) *PrinterConfigResponse {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		out = append(out, strings.TrimPrefix(strings.ToLower(f), "."))
	}

	return &PrinterConfigResponse{
		BuildVolume:      BuildVolumeResponse{X: x, Y: y, Z: z},
		SupportedFormats: out,
		MaxFileSize:      maxFileSize,
		MaxFiles:         maxFiles,
	}
}
