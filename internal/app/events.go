package app

import (
	"time"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// Quote lifecycle event types.
const (
	EventQuoteCreated = "quote.created"
	EventQuoteUpdated = "quote.updated"
	EventQuoteDeleted = "quote.deleted"
)

var _ ports.Event = QuoteEvent{}

// QuoteEvent announces a change to a quote.
type QuoteEvent struct {
	Type          string    `json:"type"`
	QuoteID       string    `json:"quote_id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	FileCount     int       `json:"file_count"`
	Total         float64   `json:"total"`
	ShippingSize  string    `json:"shipping_size,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventType implements ports.Event.
func (e QuoteEvent) EventType() string {
	return e.Type
}

// Payload implements ports.Event.
func (e QuoteEvent) Payload() any {
	return e
}

func newQuoteEvent(eventType string, q *domain.Quote, at time.Time) QuoteEvent {
	return QuoteEvent{
		Type:          eventType,
		QuoteID:       q.ID,
		CustomerEmail: q.CustomerEmail,
		FileCount:     len(q.Items),
		Total:         q.Total,
		ShippingSize:  string(q.ShippingSize),
		ExpiresAt:     q.ExpiresAt,
		OccurredAt:    at.UTC(),
	}
}
