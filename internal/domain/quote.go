package domain

import (
	"math"
	"slices"
	"time"
)

// Quantity limits per line item.
const (
	MinQuantity = 1
	MaxQuantity = 1000
)

// Line item limits per quote.
const (
	MinItemsPerQuote = 1
	MaxItemsPerQuote = 10
)

// ShippingSize is the parcel tier for a whole quote.
type ShippingSize string

// Shipping tiers, smallest first.
const (
	ShippingSmall  ShippingSize = "SMALL"
	ShippingMedium ShippingSize = "MEDIUM"
	ShippingLarge  ShippingSize = "LARGE"
)

// rank orders tiers so that a larger parcel has a larger rank.
func (s ShippingSize) rank() int {
	switch s {
	case ShippingSmall:
		return 1
	case ShippingMedium:
		return 2
	case ShippingLarge:
		return 3
	default:
		return 0
	}
}

// LineItem is one processed mesh file within a quote.
// The analyzer creates it with zero pricing; the pricing engine returns a
// priced copy.
type LineItem struct {
	Filename     string
	FilePath     string
	FileSize     int64
	Volume       float64 // mm³, never negative
	BoundingBox  BoundingBox
	IsWatertight bool
	Material     Material
	Quantity     int
	UnitPrice    float64
	TotalPrice   float64
	ProcessedAt  time.Time
}

// VolumeCM3 returns the mesh volume in cubic centimetres.
func (li LineItem) VolumeCM3() float64 {
	return li.Volume / 1000.0
}

// ValidateQuantity checks the 1..1000 quantity rule.
func ValidateQuantity(quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return NewValidationErrorWithValue("quantity", "must be between 1 and 1000", quantity)
	}

	return nil
}

// Quote is a priced set of line items.
// A stored quote is replaced, never edited in place, by an update; the ID,
// CreatedAt and CustomerEmail survive the replacement.
type Quote struct {
	ID                    string
	Items                 []LineItem
	Subtotal              float64
	ShippingCost          float64
	Total                 float64
	ShippingSize          ShippingSize
	EstimatedShippingDays int
	CreatedAt             time.Time
	ExpiresAt             time.Time
	IsValid               bool
	CustomerEmail         string

	// Version increments on every successful save.
	Version int64
}

// Expired reports whether now is past the quote's expiry. The expiry
// instant itself is still valid.
func (q *Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// FindItem returns the index of the line item with the given filename.
func (q *Quote) FindItem(filename string) (int, bool) {
	idx := slices.IndexFunc(q.Items, func(li LineItem) bool {
		return li.Filename == filename
	})

	return idx, idx >= 0
}

// FilePaths returns the staged file paths of every line item.
func (q *Quote) FilePaths() []string {
	paths := make([]string, 0, len(q.Items))
	for _, li := range q.Items {
		if li.FilePath != "" {
			paths = append(paths, li.FilePath)
		}
	}

	return paths
}

// Clone returns a deep copy of the quote.
func (q *Quote) Clone() *Quote {
	c := *q
	c.Items = slices.Clone(q.Items)

	return &c
}

// Summary returns the list-view projection of the quote.
func (q *Quote) Summary() QuoteSummary {
	return QuoteSummary{
		ID:            q.ID,
		FileCount:     len(q.Items),
		Total:         q.Total,
		CreatedAt:     q.CreatedAt,
		ExpiresAt:     q.ExpiresAt,
		IsValid:       q.IsValid,
		CustomerEmail: q.CustomerEmail,
	}
}

// QuoteSummary is the list-view projection of a quote.
type QuoteSummary struct {
	ID            string
	FileCount     int
	Total         float64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	IsValid       bool
	CustomerEmail string
}

// QuoteFilter selects quotes for listing.
type QuoteFilter struct {
	CustomerEmail string
	Limit         int
	Offset        int
}

// EndOfDay returns 23:59:59 of the calendar day of t, in t's location,
// keeping t's sub-second part so the result is never before t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, t.Nanosecond(), t.Location())
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
