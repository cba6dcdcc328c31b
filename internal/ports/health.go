package ports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDuplicateChecker is returned when a checker name is registered twice.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// HealthChecker is implemented by adapters that can report their health:
// the quote store and, when enabled, the CRM webhook.
type HealthChecker interface {
	// Name identifies the component in readiness output.
	Name() string

	// Check returns nil when healthy. It must respect ctx.
	Check(ctx context.Context) error
}

// HealthRegistry aggregates health checks from multiple components.
type HealthRegistry interface {
	// Register adds a checker. Names must be unique.
	Register(checker HealthChecker) error

	// CheckAll runs every registered check concurrently.
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus represents a health state.
type HealthStatus string

const (
	// HealthStatusHealthy indicates all checks passed.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded indicates only optional checks failed. Quotes can
	// still be served.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy indicates a critical check failed.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// DefaultCheckTimeout bounds a single check when the caller's context has
// no earlier deadline.
const DefaultCheckTimeout = 2 * time.Second

// HealthResult contains the aggregated health check results.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// Failing returns the names of failed checks, sorted.
func (r *HealthResult) Failing() []string {
	var names []string

	for name, c := range r.Checks {
		if c.Status != HealthStatusHealthy {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// CheckResult contains the result of a single health check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Critical bool          `json:"critical"`
	Duration time.Duration `json:"duration_ns"`
}

// optionalChecker marks a checker whose failure only degrades the service.
type optionalChecker struct {
	HealthChecker
}

// Optional wraps checker so its failure reports degraded instead of
// unhealthy. Use it for dependencies quotes can be served without.
func Optional(checker HealthChecker) HealthChecker {
	return optionalChecker{HealthChecker: checker}
}

func isCritical(checker HealthChecker) bool {
	_, optional := checker.(optionalChecker)
	return !optional
}

// RegistryOption configures a DefaultHealthRegistry.
type RegistryOption func(*DefaultHealthRegistry)

// WithCheckTimeout sets the per-check timeout.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *DefaultHealthRegistry) {
		if d > 0 {
			r.checkTimeout = d
		}
	}
}

// DefaultHealthRegistry is a thread-safe implementation of HealthRegistry.
type DefaultHealthRegistry struct {
	mu           sync.RWMutex
	checkers     []HealthChecker
	checkTimeout time.Duration
	now          func() time.Time
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry(opts ...RegistryOption) *DefaultHealthRegistry {
	r := &DefaultHealthRegistry{
		checkers:     make([]HealthChecker, 0),
		checkTimeout: DefaultCheckTimeout,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a health checker to the registry.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := checker.Name()
	for _, c := range r.checkers {
		if c.Name() == name {
			return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
		}
	}

	r.checkers = append(r.checkers, checker)

	return nil
}

// CheckAll runs all registered checks concurrently, each under its own
// timeout. The result is unhealthy if any critical check fails and degraded
// if only optional checks fail.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := make([]HealthChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))

	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			results[i] = r.run(ctx, checker)
			return nil
		})
	}
	_ = g.Wait()

	out := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: r.now(),
	}

	for i, checker := range checkers {
		res := results[i]
		out.Checks[checker.Name()] = res

		switch {
		case res.Status == HealthStatusHealthy:
		case res.Critical:
			out.Status = HealthStatusUnhealthy
		case out.Status == HealthStatusHealthy:
			out.Status = HealthStatusDegraded
		}
	}

	return out
}

func (r *DefaultHealthRegistry) run(ctx context.Context, checker HealthChecker) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	start := r.now()
	err := checker.Check(ctx)

	res := &CheckResult{
		Status:   HealthStatusHealthy,
		Critical: isCritical(checker),
		Duration: r.now().Sub(start),
	}

	if err != nil {
		res.Status = HealthStatusUnhealthy
		res.Message = err.Error()
	}

	return res
}
