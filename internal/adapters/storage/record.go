// Package storage provides ports.QuoteRepository implementations backed by
// process memory, redis and DynamoDB.
package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

const entityQuote = "quote"

// quoteRecord is the serialized form of a quote shared by the external stores.
type quoteRecord struct {
	ID                    string           `json:"id"                      dynamodbav:"id"`
	Items                 []lineItemRecord `json:"items"                   dynamodbav:"items"`
	Subtotal              float64          `json:"subtotal"                dynamodbav:"subtotal"`
	ShippingCost          float64          `json:"shipping_cost"           dynamodbav:"shipping_cost"`
	Total                 float64          `json:"total"                   dynamodbav:"total"`
	ShippingSize          string           `json:"shipping_size"           dynamodbav:"shipping_size"`
	EstimatedShippingDays int              `json:"estimated_shipping_days" dynamodbav:"estimated_shipping_days"`
	CreatedAt             time.Time        `json:"created_at"              dynamodbav:"created_at"`
	ExpiresAt             time.Time        `json:"expires_at"              dynamodbav:"expires_at"`
	IsValid               bool             `json:"is_valid"                dynamodbav:"is_valid"`
	CustomerEmail         string           `json:"customer_email,omitempty" dynamodbav:"customer_email,omitempty"`
	Version               int64            `json:"version"                 dynamodbav:"version"`

	// PurgeAt is the DynamoDB TTL attribute (epoch seconds).
	PurgeAt int64 `json:"-" dynamodbav:"purge_at,omitempty"`
}

type lineItemRecord struct {
	Filename     string     `json:"filename"      dynamodbav:"filename"`
	FilePath     string     `json:"file_path"     dynamodbav:"file_path"`
	FileSize     int64      `json:"file_size"     dynamodbav:"file_size"`
	Volume       float64    `json:"volume"        dynamodbav:"volume"`
	BoundingBox  [6]float64 `json:"bounding_box"  dynamodbav:"bounding_box"`
	IsWatertight bool       `json:"is_watertight" dynamodbav:"is_watertight"`
	Material     string     `json:"material"      dynamodbav:"material"`
	Quantity     int        `json:"quantity"      dynamodbav:"quantity"`
	UnitPrice    float64    `json:"unit_price"    dynamodbav:"unit_price"`
	TotalPrice   float64    `json:"total_price"   dynamodbav:"total_price"`
	ProcessedAt  time.Time  `json:"processed_at"  dynamodbav:"processed_at"`
}

func toRecord(q *domain.Quote) quoteRecord {
	items := make([]lineItemRecord, 0, len(q.Items))
	for _, li := range q.Items {
		b := li.BoundingBox
		items = append(items, lineItemRecord{
			Filename:     li.Filename,
			FilePath:     li.FilePath,
			FileSize:     li.FileSize,
			Volume:       li.Volume,
			BoundingBox:  [6]float64{b.MinX, b.MinY, b.MinZ, b.MaxX, b.MaxY, b.MaxZ},
			IsWatertight: li.IsWatertight,
			Material:     li.Material.String(),
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
			TotalPrice:   li.TotalPrice,
			ProcessedAt:  li.ProcessedAt.UTC(),
		})
	}

	return quoteRecord{
		ID:                    q.ID,
		Items:                 items,
		Subtotal:              q.Subtotal,
		ShippingCost:          q.ShippingCost,
		Total:                 q.Total,
		ShippingSize:          string(q.ShippingSize),
		EstimatedShippingDays: q.EstimatedShippingDays,
		CreatedAt:             q.CreatedAt.UTC(),
		ExpiresAt:             q.ExpiresAt.UTC(),
		IsValid:               q.IsValid,
		CustomerEmail:         q.CustomerEmail,
		Version:               q.Version,
	}
}

func (r quoteRecord) toDomain() (*domain.Quote, error) {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		m, err := domain.ParseMaterial(it.Material)
		if err != nil {
			return nil, fmt.Errorf("decoding quote %s item %s: %w", r.ID, it.Filename, err)
		}

		b := it.BoundingBox
		items = append(items, domain.LineItem{
			Filename:     it.Filename,
			FilePath:     it.FilePath,
			FileSize:     it.FileSize,
			Volume:       it.Volume,
			BoundingBox:  domain.BoundingBox{MinX: b[0], MinY: b[1], MinZ: b[2], MaxX: b[3], MaxY: b[4], MaxZ: b[5]},
			IsWatertight: it.IsWatertight,
			Material:     m,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			ProcessedAt:  it.ProcessedAt,
		})
	}

	return &domain.Quote{
		ID:                    r.ID,
		Items:                 items,
		Subtotal:              r.Subtotal,
		ShippingCost:          r.ShippingCost,
		Total:                 r.Total,
		ShippingSize:          domain.ShippingSize(r.ShippingSize),
		EstimatedShippingDays: r.EstimatedShippingDays,
		CreatedAt:             r.CreatedAt,
		ExpiresAt:             r.ExpiresAt,
		IsValid:               r.IsValid,
		CustomerEmail:         r.CustomerEmail,
		Version:               r.Version,
	}, nil
}

func (r quoteRecord) summary() domain.QuoteSummary {
	return domain.QuoteSummary{
		ID:            r.ID,
		FileCount:     len(r.Items),
		Total:         r.Total,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		IsValid:       r.IsValid,
		CustomerEmail: r.CustomerEmail,
	}
}

// selectSummaries applies the filter to summaries: email match
// (case-insensitive), newest first, then offset and limit. A non-positive
// limit returns everything after the offset.
func selectSummaries(all []domain.QuoteSummary, filter domain.QuoteFilter) []domain.QuoteSummary {
	out := all[:0:0]

	for _, s := range all {
		if filter.CustomerEmail != "" && !strings.EqualFold(s.CustomerEmail, filter.CustomerEmail) {
			continue
		}

		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return []domain.QuoteSummary{}
	}

	out = out[max(filter.Offset, 0):]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}

	return out
}

// checkVersion enforces the ports.QuoteRepository Save contract given whether a
// stored quote exists and its version.
func checkVersion(id string, exists bool, current, expected int64) error {
	switch {
	case expected == 0 && exists:
		return domain.NewVersionConflictError(entityQuote, 0, current)
	case expected != 0 && !exists:
		return domain.NewNotFoundError(entityQuote, id)
	case expected != 0 && current != expected:
		return domain.NewVersionConflictError(entityQuote, expected, current)
	default:
		return nil
	}
}
