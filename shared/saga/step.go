package saga

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

// IdempotencyKey identifies one logical attempt of a step so that collaborator
// services can deduplicate repeated invocations. The key is derived
// deterministically from the saga, the step and the attempt generation, so a
// crash-and-resume re-invokes the step with the same key it used before.
type IdempotencyKey string

// NewIdempotencyKey derives the key for a step invocation
func NewIdempotencyKey(sagaID models.ID, stepName string, generation int) IdempotencyKey {
	return IdempotencyKey(fmt.Sprintf("%s:%s:%d", sagaID.String(), stepName, generation))
}

func (k IdempotencyKey) String() string {
	return string(k)
}

// StepInput carries everything a step needs to run: the saga input supplied at
// start and the recorded outputs of every previously completed step.
type StepInput struct {
	SagaID  models.ID
	Input   json.RawMessage
	Outputs []json.RawMessage
}

// Output returns the recorded output of the step at the given index
func (in StepInput) Output(index int) (json.RawMessage, error) {
	if index < 0 || index >= len(in.Outputs) {
		return nil, errors.Errorf("no recorded output for step index %d", index)
	}
	return in.Outputs[index], nil
}

// StepContract is the interface every business step must satisfy. Both calls
// are keyed by an idempotency key; the collaborator service behind the step is
// required to deduplicate by that key, which is what makes retries and
// crash-resume replays safe.
//
// Execute returns the step output on success. Failures must be classified via
// Retryable or Fatal; an unclassified error is treated as fatal.
type StepContract interface {
	Execute(ctx context.Context, key IdempotencyKey, input StepInput) (json.RawMessage, error)
	Compensate(ctx context.Context, key IdempotencyKey, output json.RawMessage) error
}

// ErrorKind classifies step failures
type ErrorKind string

const (
	// ErrorKindRetryable marks transient failures (timeouts, 5xx) retried per policy
	ErrorKindRetryable ErrorKind = "retryable"
	// ErrorKindFatal marks business rejections that immediately trigger compensation
	ErrorKindFatal ErrorKind = "fatal"
)

// StepError is a classified failure of a step's forward action
type StepError struct {
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step error: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Retryable wraps a transient failure
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Kind: ErrorKindRetryable, Err: err}
}

// Fatal wraps a business rejection
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Kind: ErrorKindFatal, Err: err}
}

// IsRetryable reports whether the error is a retryable step failure
func IsRetryable(err error) bool {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind == ErrorKindRetryable
	}
	// A step that exceeded its attempt timeout counts as a transient failure
	return errors.Is(err, context.DeadlineExceeded)
}

// CompensationError is a failure of a step's compensating action. It is never
// auto-retried: the saga lands in StatusCompensationFailed and waits for an
// operator-driven resume.
type CompensationError struct {
	StepName string
	Err      error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of step %q failed: %v", e.StepName, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// NewCompensationError wraps a compensating action failure
func NewCompensationError(stepName string, err error) error {
	if err == nil {
		return nil
	}
	return &CompensationError{StepName: stepName, Err: err}
}

// StepFunc adapts plain functions to the StepContract interface
type StepFunc struct {
	ExecuteFunc    func(ctx context.Context, key IdempotencyKey, input StepInput) (json.RawMessage, error)
	CompensateFunc func(ctx context.Context, key IdempotencyKey, output json.RawMessage) error
}

func (f StepFunc) Execute(ctx context.Context, key IdempotencyKey, input StepInput) (json.RawMessage, error) {
	return f.ExecuteFunc(ctx, key, input)
}

func (f StepFunc) Compensate(ctx context.Context, key IdempotencyKey, output json.RawMessage) error {
	if f.CompensateFunc == nil {
		return nil
	}
	return f.CompensateFunc(ctx, key, output)
}
