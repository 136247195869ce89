package application

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// GetSagaQuery represents the query to retrieve a saga instance
type GetSagaQuery struct {
	SagaID string `json:"saga_id"`
}

// GetSagaResponse is the external view of a saga instance
type GetSagaResponse struct {
	SagaID            string    `json:"saga_id"`
	DefinitionID      string    `json:"definition_id"`
	Status            string    `json:"status"`
	CurrentStep       string    `json:"current_step,omitempty"`
	CompletedSteps    []string  `json:"completed_steps,omitempty"`
	CompensationStack []string  `json:"compensation_stack,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	CancelRequested   bool      `json:"cancel_requested"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetSaga use case reads a saga instance for external callers
type GetSaga struct {
	sagaStore saga.StateStore
	registry  *saga.Registry
}

// NewGetSaga creates a new GetSaga use case
func NewGetSaga(sagaStore saga.StateStore, registry *saga.Registry) *GetSaga {
	return &GetSaga{
		sagaStore: sagaStore,
		registry:  registry,
	}
}

// Execute executes the get saga query
func (uc *GetSaga) Execute(ctx context.Context, query *GetSagaQuery) (*GetSagaResponse, error) {
	sagaID, err := models.NewID(query.SagaID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	instance, err := uc.sagaStore.Get(ctx, sagaID)
	if err != nil {
		return nil, err
	}

	def, err := uc.registry.Get(instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	response := &GetSagaResponse{
		SagaID:            instance.SagaID.String(),
		DefinitionID:      instance.DefinitionID,
		Status:            string(instance.Status),
		CompensationStack: instance.CompensationStack(def),
		FailureReason:     instance.FailureReason,
		CancelRequested:   instance.CancelRequested,
		CreatedAt:         instance.CreatedAt,
		UpdatedAt:         instance.UpdatedAt,
	}

	names := def.StepNames()
	response.CompletedSteps = names[:instance.CurrentStepIndex]
	if instance.Status == saga.StatusRunning && instance.CurrentStepIndex < def.Len() {
		response.CurrentStep = names[instance.CurrentStepIndex]
	}

	return response, nil
}
