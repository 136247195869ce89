package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// ResumeCompensationCommand is the operator command to redrive a saga parked
// in compensation-failed
type ResumeCompensationCommand struct {
	SagaID string `json:"saga_id"`
}

// ResumeCompensationResponse reports where the redrive ended up
type ResumeCompensationResponse struct {
	SagaID        string `json:"saga_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// ResumeCompensation re-enters compensation at the stored cursor. Failed
// compensations are never retried automatically; this is the explicit
// operator path.
type ResumeCompensation struct {
	executor *saga.Executor
}

// NewResumeCompensation creates a new ResumeCompensation use case
func NewResumeCompensation(executor *saga.Executor) *ResumeCompensation {
	return &ResumeCompensation{executor: executor}
}

// Execute executes the resume compensation use case
func (uc *ResumeCompensation) Execute(ctx context.Context, cmd *ResumeCompensationCommand) (*ResumeCompensationResponse, error) {
	sagaID, err := models.NewID(cmd.SagaID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	instance, err := uc.executor.ResumeCompensation(ctx, sagaID)
	if err != nil {
		var compErr *saga.CompensationError
		if instance != nil && errors.As(err, &compErr) {
			// The redrive hit the same (or another) failing compensation;
			// report the parked state rather than an internal error
			return &ResumeCompensationResponse{
				SagaID:        instance.SagaID.String(),
				Status:        string(instance.Status),
				FailureReason: instance.FailureReason,
			}, nil
		}
		return nil, err
	}

	return &ResumeCompensationResponse{
		SagaID:        instance.SagaID.String(),
		Status:        string(instance.Status),
		FailureReason: instance.FailureReason,
	}, nil
}
