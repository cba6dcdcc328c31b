package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// ExecutionStep names a stage of the quote pipeline:
// validate, analyze, price, store, respond.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepAnalyze  ExecutionStep = "analyze"
	StepPrice    ExecutionStep = "price"
	StepStore    ExecutionStep = "store"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the stage a pipeline stopped at. It unwraps to the
// stage's own error, so domain errors stay visible to errors.Is/As.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
	}

	return fmt.Sprintf("%s failed: %s: %v", e.Step, e.Message, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func newStepError(step ExecutionStep, message string, cause error) error {
	return &ExecutionError{Step: step, Message: message, Cause: cause}
}

// Executor runs Operations. The logger is used when the context carries
// none.
type Executor struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutor returns an Executor logging to logger, or slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger, tracer: otel.Tracer(tracerName)}
}

// Operation is one pass through the pipeline: I is the request, A what
// analysis learns from it, P the priced value that gets stored and O what
// the caller receives. Nil stages are skipped.
//
// Nothing may be persisted before Store. OnFailure runs exactly once, with
// the failing stage and its error, so inputs staged before the pipeline
// started can be released.
type Operation[I, A, P, O any] struct {
	Name string

	Validate  func(ctx context.Context, input I) error
	Analyze   func(ctx context.Context, input I) (A, error)
	Price     func(ctx context.Context, input I, analyzed A) (P, error)
	Store     func(ctx context.Context, input I, priced P) error
	Respond   func(ctx context.Context, input I, priced P) (O, error)
	OnFailure func(ctx context.Context, input I, step ExecutionStep, err error)
}

// stage is a pipeline step bound to the values of one run.
type stage struct {
	step    ExecutionStep
	message string
	level   slog.Level
	run     func(ctx context.Context) error
}

// Execute runs op over input, stage by stage, inside a single span.
func Execute[I, A, P, O any](ctx context.Context, exec *Executor, op Operation[I, A, P, O], input I) (O, error) {
	var (
		analyzed A
		priced   P
		out      O
	)

	stages := []stage{
		{StepValidate, "input validation failed", slog.LevelWarn, func(ctx context.Context) error {
			if op.Validate == nil {
				return nil
			}

			return op.Validate(ctx, input)
		}},
		{StepAnalyze, "analysis failed", slog.LevelWarn, func(ctx context.Context) (err error) {
			if op.Analyze != nil {
				analyzed, err = op.Analyze(ctx, input)
			}

			return err
		}},
		{StepPrice, "pricing failed", slog.LevelWarn, func(ctx context.Context) (err error) {
			if op.Price != nil {
				priced, err = op.Price(ctx, input, analyzed)
			}

			return err
		}},
		{StepStore, "state persistence failed", slog.LevelError, func(ctx context.Context) error {
			if op.Store == nil {
				return nil
			}

			return op.Store(ctx, input, priced)
		}},
		{StepRespond, "response failed", slog.LevelWarn, func(ctx context.Context) (err error) {
			if op.Respond != nil {
				out, err = op.Respond(ctx, input, priced)
			}

			return err
		}},
	}

	logger, ok := logging.Lookup(ctx)
	if !ok {
		logger = exec.logger
	}

	logger = logger.With(slog.String("operation", op.Name))

	ctx, span := exec.tracer.Start(ctx, "pipeline."+op.Name)
	defer span.End()

	start := time.Now()

	for _, s := range stages {
		logger.Log(ctx, logging.LevelTrace, "stage starting", slog.String("step", string(s.step)))

		err := s.run(ctx)
		if err == nil {
			continue
		}

		logger.Log(ctx, s.level, s.message, slog.String("step", string(s.step)), slog.Any("error", err))
		span.SetAttributes(attribute.String("pipeline.failed_step", string(s.step)))
		span.SetStatus(codes.Error, s.message)

		if op.OnFailure != nil {
			op.OnFailure(ctx, input, s.step, err)
		}

		var zero O

		return zero, newStepError(s.step, s.message, err)
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return out, nil
}

// IsExecutionError reports whether err came out of a pipeline stage.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError

	return errors.As(err, &execErr)
}

// GetExecutionStep returns the stage err was raised in.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		return "", false
	}

	return execErr.Step, true
}
