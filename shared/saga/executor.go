package saga

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// TransitionData is the structured payload emitted on every persisted state
// transition, consumed by external logging/metrics collaborators.
type TransitionData struct {
	SagaID       models.ID `json:"saga_id"`
	DefinitionID string    `json:"definition_id"`
	FromStatus   Status    `json:"from_status"`
	ToStatus     Status    `json:"to_status"`
	StepName     string    `json:"step_name,omitempty"`
	StepIndex    int       `json:"step_index"`
	Timestamp    time.Time `json:"timestamp"`
}

// Executor drives saga instances through the forward and compensating state
// machine. Every mutation is persisted through the state store before the
// next external action is taken ("persist-then-act"), so recovery never has
// to guess whether a step's side effect happened: it replays from the last
// recorded index with the same idempotency key.
type Executor struct {
	registry  *Registry
	store     StateStore
	publisher events.Publisher
}

// NewExecutor creates an executor. The publisher receives a transition event
// per persisted state change and may be nil.
func NewExecutor(registry *Registry, store StateStore, publisher events.Publisher) *Executor {
	return &Executor{
		registry:  registry,
		store:     store,
		publisher: publisher,
	}
}

// Run loads the instance and advances it as far as it can go: forward to
// Completed, or through compensation to Failed. Invoking Run on a terminal
// instance is a no-op and does not touch the stored version, so re-dispatch
// by the supervisor is always safe.
//
// The returned instance reflects the last persisted state. The error is
// non-nil only for system-level outcomes: persistence failures, lost CAS
// races (errors.Is ErrConcurrencyConflict) and compensation failures
// (*CompensationError). A saga that compensated cleanly returns StatusFailed
// with a nil error; the business outcome lives in the instance.
func (e *Executor) Run(ctx context.Context, sagaID models.ID) (*Instance, error) {
	instance, err := e.store.Get(ctx, sagaID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saga instance")
	}

	if instance.Status.Terminal() {
		return instance, nil
	}

	def, err := e.registry.Get(instance.DefinitionID)
	if err != nil {
		return instance, err
	}

	if instance.Status == StatusPending {
		from := instance.Status
		instance.Status = StatusRunning
		if err := e.persist(ctx, instance, from, ""); err != nil {
			return instance, err
		}
	}

	if instance.Status == StatusRunning {
		if err := e.runForward(ctx, def, instance); err != nil {
			return instance, err
		}
	}

	if instance.Status == StatusCompensating {
		if err := e.runCompensation(ctx, def, instance); err != nil {
			return instance, err
		}
	}

	return instance, nil
}

// RequestCancel marks the instance for cancellation. The in-flight step is
// never abandoned: the owning executor observes the flag at the next safe
// checkpoint and unwinds through normal compensation. Setting the flag bumps
// the stored version, so an executor mid-run loses its CAS race and the
// supervisor re-dispatches with the flag visible.
func (e *Executor) RequestCancel(ctx context.Context, sagaID models.ID) error {
	instance, err := e.store.Get(ctx, sagaID)
	if err != nil {
		return errors.Wrap(err, "failed to load saga instance")
	}

	if instance.Status.Terminal() {
		return errors.Errorf("saga %s is already %s", sagaID, instance.Status)
	}
	if instance.CancelRequested {
		return nil
	}

	instance.CancelRequested = true
	if err := e.store.TryPut(ctx, instance, instance.Version); err != nil {
		return errors.Wrap(err, "failed to persist cancellation request")
	}
	return nil
}

// ResumeCompensation re-enters compensation for a saga that ended in
// CompensationFailed. The cursor was left pointing at the failed step, so the
// resumed pass re-attempts exactly that compensation with its original
// idempotency key. This is the operator-driven redrive path; the executor
// never retries a failed compensation on its own.
func (e *Executor) ResumeCompensation(ctx context.Context, sagaID models.ID) (*Instance, error) {
	instance, err := e.store.Get(ctx, sagaID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saga instance")
	}

	if instance.Status != StatusCompensationFailed {
		return instance, errors.Errorf(
			"saga %s is %s, only compensation-failed sagas can be resumed", sagaID, instance.Status)
	}

	def, err := e.registry.Get(instance.DefinitionID)
	if err != nil {
		return instance, err
	}

	from := instance.Status
	instance.Status = StatusCompensating
	if err := e.persist(ctx, instance, from, ""); err != nil {
		return instance, err
	}

	if err := e.runCompensation(ctx, def, instance); err != nil {
		return instance, err
	}
	return instance, nil
}

// runForward executes steps from CurrentStepIndex onward until the saga
// completes, a step fails, or cancellation is requested
func (e *Executor) runForward(ctx context.Context, def *Definition, instance *Instance) error {
	for instance.Status == StatusRunning {
		if instance.CancelRequested {
			from := instance.Status
			instance.BeginCompensation("cancellation requested")
			if err := e.persist(ctx, instance, from, ""); err != nil {
				return err
			}
			return nil
		}

		if instance.CurrentStepIndex >= def.Len() {
			from := instance.Status
			instance.Status = StatusCompleted
			return e.persist(ctx, instance, from, "")
		}

		stepDef := def.Step(instance.CurrentStepIndex)
		key := NewIdempotencyKey(instance.SagaID, stepDef.Name, instance.AttemptGeneration)

		output, err := e.executeWithRetry(ctx, stepDef, key, instance.StepInput())
		if err != nil {
			from := instance.Status
			instance.BeginCompensation(failureReason(err))
			if err := e.persist(ctx, instance, from, stepDef.Name); err != nil {
				return err
			}
			return nil
		}

		instance.RecordStepOutput(output)
		if err := e.persist(ctx, instance, StatusRunning, stepDef.Name); err != nil {
			return err
		}
	}
	return nil
}

// runCompensation unwinds completed steps from CompensationCursor down to
// zero, strictly LIFO. A failed compensation leaves the cursor in place and
// parks the saga in CompensationFailed for operator-driven resume.
func (e *Executor) runCompensation(ctx context.Context, def *Definition, instance *Instance) error {
	for instance.Status == StatusCompensating {
		if instance.CompensationCursor < 0 {
			from := instance.Status
			instance.Status = StatusFailed
			return e.persist(ctx, instance, from, "")
		}

		stepDef := def.Step(instance.CompensationCursor)

		if stepDef.NonCompensatable {
			instance.CompensationCursor--
			if instance.CompensationCursor < 0 {
				instance.Status = StatusFailed
			}
			if err := e.persist(ctx, instance, StatusCompensating, stepDef.Name); err != nil {
				return err
			}
			continue
		}

		key := NewIdempotencyKey(instance.SagaID, stepDef.Name, instance.AttemptGeneration)
		output := instance.StepOutputs[instance.CompensationCursor]

		if err := stepDef.Step.Compensate(ctx, key, output); err != nil {
			compErr := NewCompensationError(stepDef.Name, err)
			from := instance.Status
			instance.Status = StatusCompensationFailed
			instance.FailureReason = compErr.Error()
			if perr := e.persist(ctx, instance, from, stepDef.Name); perr != nil {
				return perr
			}
			return compErr
		}

		instance.CompensationCursor--
		if instance.CompensationCursor < 0 {
			instance.Status = StatusFailed
		}
		if err := e.persist(ctx, instance, StatusCompensating, stepDef.Name); err != nil {
			return err
		}
	}
	return nil
}

// executeWithRetry runs the forward action, retrying retryable failures in
// place per the step's policy. Exceeding the attempt timeout counts as a
// retryable failure; exhausting the budget escalates the last error.
func (e *Executor) executeWithRetry(ctx context.Context, stepDef StepDefinition, key IdempotencyKey, input StepInput) (json.RawMessage, error) {
	policy := stepDef.Retry
	var output json.RawMessage

	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, policy.AttemptTimeout)
			defer cancel()

			result, err := stepDef.Step.Execute(attemptCtx, key, input)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return Retryable(err)
				}
				return err
			}
			output = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxAttempts)),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffMultiplier, float64(n))
			if backoff > float64(policy.MaxBackoff) {
				return policy.MaxBackoff
			}
			return time.Duration(backoff)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "step %q failed", stepDef.Name)
	}
	return output, nil
}

// persist writes the instance with a CAS on its current version and emits
// the transition event. The instance's version is bumped by the store on
// success, keeping this copy current for the next write.
func (e *Executor) persist(ctx context.Context, instance *Instance, from Status, stepName string) error {
	if err := e.store.TryPut(ctx, instance, instance.Version); err != nil {
		return errors.Wrapf(err, "failed to persist saga %s", instance.SagaID)
	}

	e.emitTransition(ctx, instance, from, stepName)
	return nil
}

func (e *Executor) emitTransition(ctx context.Context, instance *Instance, from Status, stepName string) {
	telemetry.RecordCounter(ctx, "saga_transitions_total", "Total saga state transitions", 1,
		attribute.String("definition_id", instance.DefinitionID),
		attribute.String("from_status", string(from)),
		attribute.String("to_status", string(instance.Status)),
	)

	if e.publisher == nil {
		return
	}

	event := events.NewEvent(instance.SagaID, events.SagaTransitionEvent, TransitionData{
		SagaID:       instance.SagaID,
		DefinitionID: instance.DefinitionID,
		FromStatus:   from,
		ToStatus:     instance.Status,
		StepName:     stepName,
		StepIndex:    instance.CurrentStepIndex,
		Timestamp:    instance.UpdatedAt,
	}).WithCorrelationID(instance.SagaID)

	// Observability must not break the engine
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.Printf("failed to publish saga transition event for %s: %v", instance.SagaID, err)
	}
}

// failureReason extracts the human-readable reason recorded on the instance
func failureReason(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err.Error()
	}
	return err.Error()
}
