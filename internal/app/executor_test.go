package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

type recordedFailure struct {
	step ExecutionStep
	err  error
}

func TestExecute_RunsStepsInOrder(t *testing.T) {
	var steps []string

	op := Operation[int, int, int, string]{
		Name: "test",
		Validate: func(context.Context, int) error {
			steps = append(steps, "validate")
			return nil
		},
		Analyze: func(_ context.Context, in int) (int, error) {
			steps = append(steps, "analyze")
			return in * 2, nil
		},
		Price: func(_ context.Context, _ int, a int) (int, error) {
			steps = append(steps, "price")
			return a + 1, nil
		},
		Store: func(context.Context, int, int) error {
			steps = append(steps, "store")
			return nil
		},
		Respond: func(_ context.Context, _ int, p int) (string, error) {
			steps = append(steps, "respond")
			return "priced", nil
		},
		OnFailure: func(context.Context, int, ExecutionStep, error) {
			t.Fatal("OnFailure must not run on success")
		},
	}

	out, err := Execute(context.Background(), NewExecutor(discardLogger()), op, 3)

	require.NoError(t, err)
	assert.Equal(t, "priced", out)
	assert.Equal(t, []string{"validate", "analyze", "price", "store", "respond"}, steps)
}

func TestExecute_FailureStopsPipeline(t *testing.T) {
	cause := domain.NewValidationError("files", "No files uploaded")

	tests := []struct {
		name      string
		failAt    ExecutionStep
		wantSteps []string
	}{
		{name: "validate", failAt: StepValidate, wantSteps: []string{"validate"}},
		{name: "analyze", failAt: StepAnalyze, wantSteps: []string{"validate", "analyze"}},
		{name: "price", failAt: StepPrice, wantSteps: []string{"validate", "analyze", "price"}},
		{name: "store", failAt: StepStore, wantSteps: []string{"validate", "analyze", "price", "store"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				steps    []string
				failures []recordedFailure
			)

			step := func(s ExecutionStep) error {
				steps = append(steps, string(s))
				if s == tt.failAt {
					return cause
				}

				return nil
			}

			op := Operation[struct{}, struct{}, struct{}, struct{}]{
				Validate: func(context.Context, struct{}) error { return step(StepValidate) },
				Analyze: func(context.Context, struct{}) (struct{}, error) {
					return struct{}{}, step(StepAnalyze)
				},
				Price: func(context.Context, struct{}, struct{}) (struct{}, error) {
					return struct{}{}, step(StepPrice)
				},
				Store: func(context.Context, struct{}, struct{}) error { return step(StepStore) },
				OnFailure: func(_ context.Context, _ struct{}, s ExecutionStep, err error) {
					failures = append(failures, recordedFailure{step: s, err: err})
				},
			}

			_, err := Execute(context.Background(), NewExecutor(nil), op, struct{}{})

			require.Error(t, err)
			assert.Equal(t, tt.wantSteps, steps)
			assert.True(t, domain.IsValidation(err), "cause stays visible through the step error")

			got, ok := GetExecutionStep(err)
			assert.True(t, ok)
			assert.Equal(t, tt.failAt, got)

			require.Len(t, failures, 1)
			assert.Equal(t, tt.failAt, failures[0].step)
			assert.Equal(t, cause, failures[0].err)
		})
	}
}

func TestExecutionError(t *testing.T) {
	err := newStepError(StepStore, "state persistence failed", errors.New("redis down"))

	assert.Equal(t, "store failed: state persistence failed: redis down", err.Error())
	assert.True(t, IsExecutionError(err))
	assert.False(t, IsExecutionError(errors.New("plain")))

	_, ok := GetExecutionStep(errors.New("plain"))
	assert.False(t, ok)

	bare := &ExecutionError{Step: StepValidate, Message: "bad"}
	assert.Equal(t, "validate failed: bad", bare.Error())
}
