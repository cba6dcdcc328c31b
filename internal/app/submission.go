package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	maxFilenameLength  = 255
	forbiddenFileChars = `<>:"|?*`
)

// Upload is one staged file of a submission.
type Upload struct {
	// Filename is the name the customer uploaded.
	Filename string

	// Path is where the file was staged.
	Path string

	Material domain.Material
	Quantity int
}

// Submission is a multi-file quote request whose files are already staged.
type Submission struct {
	Uploads       []Upload
	CustomerEmail string
}

// Paths returns the staged paths of every upload.
func (s Submission) Paths() []string {
	paths := make([]string, 0, len(s.Uploads))
	for _, u := range s.Uploads {
		if u.Path != "" {
			paths = append(paths, u.Path)
		}
	}

	return paths
}

// ValidateFilename checks the customer-facing filename of an upload.
func ValidateFilename(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return domain.NewValidationError("filename", "Filename is required")
	case len(name) > maxFilenameLength:
		return domain.NewValidationErrorWithValue("filename",
			fmt.Sprintf("Filename must be at most %d characters", maxFilenameLength), name)
	case strings.ContainsAny(name, forbiddenFileChars):
		return domain.NewValidationErrorWithValue("filename",
			"Filename contains invalid characters: "+name, name)
	default:
		return nil
	}
}

// ValidateEmail checks an optional customer email.
func ValidateEmail(email string) error {
	if email == "" || emailPattern.MatchString(email) {
		return nil
	}

	return domain.NewValidationErrorWithValue("customer_email", "Invalid email format", email)
}

// Submit runs a submission through validate, analyze, price, store and
// respond. Staged files are removed when any step fails and scheduled for
// removal after the cleanup delay on success.
func (s *QuoteService) Submit(ctx context.Context, sub Submission) (*domain.Quote, error) {
	if s.analyzer == nil {
		return nil, errors.New("quote service has no analyzer")
	}

	op := Operation[Submission, []domain.LineItem, *domain.Quote, *domain.Quote]{
		Name:      "submit_quote",
		Validate:  s.validateSubmission,
		Analyze:   s.analyzeSubmission,
		Price:     s.priceSubmission,
		Store:     s.storeSubmission,
		Respond:   s.respondSubmission,
		OnFailure: s.submissionFailed,
	}

	return Execute(ctx, s.executor, op, sub)
}

// Precheck validates a submission before its files are staged, so that a
// request rejected on its form fields never touches the disk. Paths may be
// empty. Submit repeats the same checks.
func (s *QuoteService) Precheck(sub Submission) error {
	if s.analyzer == nil {
		return errors.New("quote service has no analyzer")
	}

	return s.validateSubmission(context.Background(), sub)
}

// Discard removes staged files of a submission that never reached Submit.
func (s *QuoteService) Discard(ctx context.Context, paths ...string) error {
	return s.artifacts.CleanupNow(ctx, paths...)
}

// Limits returns the upload constraints: the analyzer configuration and the
// maximum files per submission.
func (s *QuoteService) Limits() (AnalyzerConfig, int) {
	var cfg AnalyzerConfig
	if s.analyzer != nil {
		cfg = s.analyzer.Config()
	}

	return cfg, s.maxFiles
}

func (s *QuoteService) validateSubmission(_ context.Context, sub Submission) error {
	switch n := len(sub.Uploads); {
	case n == 0:
		return domain.NewValidationError("files", "No files uploaded")
	case n > s.maxFiles:
		return domain.NewValidationErrorWithValue("files",
			fmt.Sprintf("Maximum %d files allowed", s.maxFiles), n)
	}

	for _, u := range sub.Uploads {
		if err := ValidateFilename(u.Filename); err != nil {
			return err
		}

		if err := s.analyzer.CheckExtension(u.Filename); err != nil {
			return err
		}

		if !u.Material.Valid() {
			return domain.NewValidationErrorWithValue("materials",
				"Invalid material type: "+u.Material.String(), u.Material.String())
		}

		if domain.ValidateQuantity(u.Quantity) != nil {
			return domain.NewValidationErrorWithValue("quantities",
				fmt.Sprintf("Quantity must be between %d and %d, got: %d",
					domain.MinQuantity, domain.MaxQuantity, u.Quantity),
				u.Quantity)
		}
	}

	return ValidateEmail(sub.CustomerEmail)
}

func (s *QuoteService) analyzeSubmission(ctx context.Context, sub Submission) ([]domain.LineItem, error) {
	items, err := ParallelLimit(ctx, s.workers, sub.Uploads,
		func(ctx context.Context, _ int, u Upload) (domain.LineItem, error) {
			item, err := s.analyzer.Analyze(ctx, u.Path, u.Filename, u.Material, u.Quantity)
			if err != nil {
				return domain.LineItem{}, attributeToFile(u.Filename, err)
			}

			return s.pricing.PriceLineItem(item), nil
		})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// attributeToFile names the failing file in validation and processing errors.
func attributeToFile(filename string, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return domain.NewValidationErrorWithValue(ve.Field,
			fmt.Sprintf("Validation error for %s: %s", filename, ve.Message), filename)
	}

	var pe *domain.ProcessingError
	if errors.As(err, &pe) {
		return domain.NewProcessingError("Processing error for "+filename, pe)
	}

	return fmt.Errorf("analyzing %s: %w", filename, err)
}

func (s *QuoteService) priceSubmission(_ context.Context, _ Submission, items []domain.LineItem) (*domain.Quote, error) {
	return s.pricing.PriceQuote(items)
}

func (s *QuoteService) storeSubmission(ctx context.Context, sub Submission, q *domain.Quote) error {
	return s.store(ctx, q, sub.CustomerEmail)
}

func (s *QuoteService) respondSubmission(ctx context.Context, _ Submission, q *domain.Quote) (*domain.Quote, error) {
	s.artifacts.Schedule(q.ID, q.FilePaths(), s.cleanupDelay)
	s.created(ctx, q)

	return q, nil
}

func (s *QuoteService) submissionFailed(ctx context.Context, sub Submission, step ExecutionStep, err error) {
	s.metrics.SubmissionsFailed.WithLabelValues(failureReason(err)).Inc()

	if cleanupErr := s.artifacts.CleanupNow(context.WithoutCancel(ctx), sub.Paths()...); cleanupErr != nil {
		s.logger.WarnContext(ctx, "failed to remove staged uploads",
			slog.String("step", string(step)),
			slog.Any("error", cleanupErr),
		)
	}
}
