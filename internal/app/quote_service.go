// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

const (
	entityQuote = "quote"
	entityFile  = "file"
)

// QuoteService orchestrates the quote lifecycle. It depends on port
// interfaces, not concrete implementations.
type QuoteService struct {
	repo         ports.QuoteRepository
	pricing      *domain.PricingEngine
	analyzer     *Analyzer
	artifacts    *ArtifactManager
	publisher    ports.EventPublisher
	metrics      *Metrics
	executor     *Executor
	logger       *slog.Logger
	workers      int
	maxFiles     int
	cleanupDelay time.Duration
	now          func() time.Time
	newID        func() string
}

// QuoteServiceConfig contains the dependencies of the quote service.
// Repository and Pricing are required. Analyzer is required for Submit.
type QuoteServiceConfig struct {
	Repository   ports.QuoteRepository
	Pricing      *domain.PricingEngine
	Analyzer     *Analyzer
	Artifacts    *ArtifactManager
	Publisher    ports.EventPublisher
	Metrics      *Metrics
	Logger       *slog.Logger
	Workers      int
	MaxFiles     int
	CleanupDelay time.Duration

	// Now and NewID default to time.Now and uuid v4.
	Now   func() time.Time
	NewID func() string
}

// NewQuoteService creates a new quote service with the provided dependencies.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Repository == nil {
		panic("quote service requires a repository")
	}

	if cfg.Pricing == nil {
		panic("quote service requires a pricing engine")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}

	if cfg.Artifacts == nil {
		cfg.Artifacts = NewArtifactManager(cfg.Logger, cfg.Metrics)
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if cfg.MaxFiles < 1 {
		cfg.MaxFiles = domain.MaxItemsPerQuote
	}

	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = time.Hour
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	logger := cfg.Logger.With(slog.String("component", "quote_service"))

	return &QuoteService{
		repo:         cfg.Repository,
		pricing:      cfg.Pricing,
		analyzer:     cfg.Analyzer,
		artifacts:    cfg.Artifacts,
		publisher:    cfg.Publisher,
		metrics:      cfg.Metrics,
		executor:     NewExecutor(logger),
		logger:       logger,
		workers:      cfg.Workers,
		maxFiles:     cfg.MaxFiles,
		cleanupDelay: cfg.CleanupDelay,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
}

// Now returns the service clock.
func (s *QuoteService) Now() time.Time {
	return s.now()
}

// Pricing returns the pricing engine.
func (s *QuoteService) Pricing() *domain.PricingEngine {
	return s.pricing
}

// Create prices items and stores them as a new quote.
func (s *QuoteService) Create(ctx context.Context, items []domain.LineItem, customerEmail string) (*domain.Quote, error) {
	q, err := s.price(items)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, q, customerEmail); err != nil {
		return nil, err
	}

	s.created(ctx, q)

	return q, nil
}

func (s *QuoteService) price(items []domain.LineItem) (*domain.Quote, error) {
	priced := make([]domain.LineItem, len(items))
	for i, li := range items {
		priced[i] = s.pricing.PriceLineItem(li)
	}

	return s.pricing.PriceQuote(priced)
}

// store gives q its identity and persists it.
func (s *QuoteService) store(ctx context.Context, q *domain.Quote, customerEmail string) error {
	now := s.now().UTC()

	q.ID = s.newID()
	q.CreatedAt = now
	q.ExpiresAt = domain.EndOfDay(now)
	q.IsValid = true
	q.CustomerEmail = customerEmail

	if err := s.repo.Save(ctx, q, 0); err != nil {
		return fmt.Errorf("saving quote: %w", err)
	}

	return nil
}

func (s *QuoteService) created(ctx context.Context, q *domain.Quote) {
	s.metrics.QuotesCreated.WithLabelValues(string(q.ShippingSize)).Inc()
	s.metrics.QuoteTotal.Observe(q.Total)

	s.logger.InfoContext(ctx, "quote created",
		slog.String("quote_id", q.ID),
		slog.Int("files", len(q.Items)),
		slog.Float64("total", q.Total),
		slog.String("shipping_size", string(q.ShippingSize)),
	)

	s.publish(ctx, EventQuoteCreated, q)
}

// Get returns the stored quote. Expired quotes are returned as stored.
func (s *QuoteService) Get(ctx context.Context, id string) (*domain.Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return q, nil
}

// Active returns the quote, or a GoneError once it has expired.
func (s *QuoteService) Active(ctx context.Context, id string) (*domain.Quote, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if q.Expired(s.now()) {
		return nil, domain.NewGoneError(entityQuote, id)
	}

	return q, nil
}

// LineItemChange describes an update to one line item. Nil fields are left
// unchanged.
type LineItemChange struct {
	Filename string
	Quantity *int
	Material *domain.Material
}

// Update applies changes to an active quote and re-prices it. The quote keeps
// its identity, creation time, expiry and customer.
func (s *QuoteService) Update(ctx context.Context, id string, changes []LineItemChange) (*domain.Quote, error) {
	current, err := s.Active(ctx, id)
	if err != nil {
		return nil, err
	}

	items := current.Clone().Items

	for _, ch := range changes {
		idx, ok := current.FindItem(ch.Filename)
		if !ok {
			return nil, domain.NewNotFoundError(entityFile, ch.Filename)
		}

		item := items[idx]

		if ch.Quantity != nil {
			if domain.ValidateQuantity(*ch.Quantity) != nil {
				return nil, domain.NewValidationErrorWithValue("quantity",
					fmt.Sprintf("Quantity must be between %d and %d for %s",
						domain.MinQuantity, domain.MaxQuantity, ch.Filename),
					*ch.Quantity)
			}

			item.Quantity = *ch.Quantity
		}

		if ch.Material != nil {
			if !ch.Material.Valid() {
				return nil, domain.NewValidationErrorWithValue("material",
					"Invalid material type: "+ch.Material.String(), ch.Material.String())
			}

			item.Material = *ch.Material
		}

		items[idx] = s.pricing.PriceLineItem(item)
	}

	updated, err := s.pricing.PriceQuote(items)
	if err != nil {
		return nil, err
	}

	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.ExpiresAt = current.ExpiresAt
	updated.CustomerEmail = current.CustomerEmail

	if err := s.repo.Save(ctx, updated, current.Version); err != nil {
		return nil, fmt.Errorf("saving quote: %w", err)
	}

	s.logger.InfoContext(ctx, "quote updated",
		slog.String("quote_id", id),
		slog.Int("changes", len(changes)),
		slog.Float64("total", updated.Total),
	)

	s.publish(ctx, EventQuoteUpdated, updated)

	return updated, nil
}

// Delete removes the quote, cancels its pending cleanup and removes its files.
func (s *QuoteService) Delete(ctx context.Context, id string) error {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.artifacts.Cancel(id)

	if err := s.artifacts.CleanupNow(ctx, q.FilePaths()...); err != nil {
		s.logger.WarnContext(ctx, "failed to remove quote files",
			slog.String("quote_id", id),
			slog.Any("error", err),
		)
	}

	s.logger.InfoContext(ctx, "quote deleted", slog.String("quote_id", id))

	s.publish(ctx, EventQuoteDeleted, q)

	return nil
}

// List returns quote summaries newest first. The limit defaults to
// DefaultListLimit and is capped at MaxListLimit.
func (s *QuoteService) List(ctx context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}

	filter.Offset = max(filter.Offset, 0)

	return s.repo.List(ctx, filter)
}

// Breakdown returns the pricing breakdown of an active quote.
func (s *QuoteService) Breakdown(ctx context.Context, id string) (domain.Breakdown, error) {
	q, err := s.Active(ctx, id)
	if err != nil {
		return domain.Breakdown{}, err
	}

	return s.pricing.Breakdown(q), nil
}

// publish sends an event without failing the caller.
func (s *QuoteService) publish(ctx context.Context, eventType string, q *domain.Quote) {
	if s.publisher == nil {
		return
	}

	ctx = logging.WithQuoteID(ctx, q.ID)

	if err := s.publisher.Publish(ctx, newQuoteEvent(eventType, q, s.now())); err != nil {
		s.logger.WarnContext(ctx, "failed to publish quote event",
			slog.String("event", eventType),
			slog.String("quote_id", q.ID),
			slog.Any("error", err),
		)
	}
}
