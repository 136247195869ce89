package saga

import (
	"encoding/json"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
)

// Status represents the current state of a saga instance
type Status string

const (
	StatusPending            Status = "pending"
	StatusRunning            Status = "running"
	StatusCompensating       Status = "compensating"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusCompensationFailed Status = "compensation_failed"
)

// Terminal reports whether the status permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCompensationFailed
}

// Active reports whether an executor may currently own the instance
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning || s == StatusCompensating
}

// Instance is the mutable record of one execution of a Definition.
//
// Invariants: CurrentStepIndex only increases while Running;
// CompensationCursor only decreases while Compensating;
// len(StepOutputs) == CurrentStepIndex at all times; Version increments
// exactly once per persisted write and every write carries the
// previously-read version as a compare-and-swap precondition.
type Instance struct {
	SagaID             models.ID         `json:"saga_id"`
	DefinitionID       string            `json:"definition_id"`
	Status             Status            `json:"status"`
	Input              json.RawMessage   `json:"input"`
	CurrentStepIndex   int               `json:"current_step_index"`
	StepOutputs        []json.RawMessage `json:"step_outputs"`
	CompensationCursor int               `json:"compensation_cursor"`
	AttemptGeneration  int               `json:"attempt_generation"`
	CancelRequested    bool              `json:"cancel_requested"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	Version            int64             `json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewInstance creates a pending instance of the given definition
func NewInstance(def *Definition, sagaID models.ID, input json.RawMessage) *Instance {
	if sagaID == "" {
		sagaID = models.GenerateUUID()
	}
	now := time.Now()
	return &Instance{
		SagaID:             sagaID,
		DefinitionID:       def.ID(),
		Status:             StatusPending,
		Input:              input,
		CurrentStepIndex:   0,
		StepOutputs:        nil,
		CompensationCursor: -1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// StepInput builds the input passed to the next forward step
func (in *Instance) StepInput() StepInput {
	return StepInput{
		SagaID:  in.SagaID,
		Input:   in.Input,
		Outputs: in.StepOutputs,
	}
}

// RecordStepOutput appends the output of the step at CurrentStepIndex and
// advances the index
func (in *Instance) RecordStepOutput(output json.RawMessage) {
	in.StepOutputs = append(in.StepOutputs, output)
	in.CurrentStepIndex++
}

// BeginCompensation moves the instance into the compensating state, pointing
// the cursor at the most recently completed step
func (in *Instance) BeginCompensation(reason string) {
	in.Status = StatusCompensating
	in.CompensationCursor = in.CurrentStepIndex - 1
	in.FailureReason = reason
}

// CompensationStack returns the names of the completed steps whose
// compensating action has not run yet, in the LIFO order they will be
// compensated. It is derived from the cursor and the static definition rather
// than stored, so it cannot drift from the source of truth.
func (in *Instance) CompensationStack(def *Definition) []string {
	if in.Status != StatusCompensating && in.Status != StatusCompensationFailed {
		return nil
	}
	var names []string
	for i := in.CompensationCursor; i >= 0; i-- {
		names = append(names, def.Step(i).Name)
	}
	return names
}

// Clone returns a deep copy of the instance
func (in *Instance) Clone() *Instance {
	clone := *in
	if in.StepOutputs != nil {
		clone.StepOutputs = make([]json.RawMessage, len(in.StepOutputs))
		for i, out := range in.StepOutputs {
			clone.StepOutputs[i] = append(json.RawMessage(nil), out...)
		}
	}
	if in.Input != nil {
		clone.Input = append(json.RawMessage(nil), in.Input...)
	}
	return &clone
}
