// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrConflict, etc.)
package ports

import (
	"context"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// QuoteRepository persists quotes keyed by ID.
//
// Save implements optimistic concurrency: expectedVersion is the version the
// caller read, or 0 to create. On success the stored version becomes
// expectedVersion+1 and q.Version is updated to match.
type QuoteRepository interface {
	// Get returns domain.ErrNotFound if the quote does not exist.
	// Expired quotes are returned as stored.
	Get(ctx context.Context, id string) (*domain.Quote, error)

	// Save returns domain.ErrConflict on a version mismatch, including an
	// attempted create over an existing ID.
	Save(ctx context.Context, q *domain.Quote, expectedVersion int64) error

	// Delete returns domain.ErrNotFound if the quote does not exist.
	Delete(ctx context.Context, id string) error

	// List returns summaries newest first, after applying the filter's
	// email match, offset and limit.
	List(ctx context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error)
}

// MeshLoader reads a triangle mesh from a staged file.
type MeshLoader interface {
	// Load returns a domain.ProcessingError when the file content is not a
	// readable mesh.
	Load(ctx context.Context, path string) (*domain.Mesh, error)
}

// EventPublisher defines the contract for publishing domain events.
type EventPublisher interface {
	// Publish sends an event to the configured destination.
	// Returns domain.ErrUnavailable if the destination is unreachable.
	Publish(ctx context.Context, event Event) error
}

// Event represents a domain event that can be published.
type Event interface {
	// EventType returns the type identifier for routing.
	EventType() string

	// Payload returns the event data for serialization.
	Payload() any
}
