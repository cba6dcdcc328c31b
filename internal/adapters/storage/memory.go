package storage

import (
	"context"
	"sync"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

var _ ports.QuoteRepository = (*MemoryRepository)(nil)

// MemoryRepository keeps quotes in process memory. Stored and returned quotes
// are deep copies, so callers cannot mutate repository state.
type MemoryRepository struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{quotes: make(map[string]*domain.Quote)}
}

// Get implements ports.QuoteRepository.
func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.quotes[id]
	if !ok {
		return nil, domain.NewNotFoundError(entityQuote, id)
	}

	return q.Clone(), nil
}

// Save implements ports.QuoteRepository.
func (r *MemoryRepository) Save(_ context.Context, q *domain.Quote, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64

	existing, exists := r.quotes[q.ID]
	if exists {
		current = existing.Version
	}

	if err := checkVersion(q.ID, exists, current, expectedVersion); err != nil {
		return err
	}

	q.Version = expectedVersion + 1
	r.quotes[q.ID] = q.Clone()

	return nil
}

// Delete implements ports.QuoteRepository.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.quotes[id]; !ok {
		return domain.NewNotFoundError(entityQuote, id)
	}

	delete(r.quotes, id)

	return nil
}

// List implements ports.QuoteRepository.
func (r *MemoryRepository) List(_ context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error) {
	r.mu.RLock()

	all := make([]domain.QuoteSummary, 0, len(r.quotes))
	for _, q := range r.quotes {
		all = append(all, q.Summary())
	}

	r.mu.RUnlock()

	return selectSummaries(all, filter), nil
}

