package application

import (
	"context"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// CancelOrderCommand requests cancellation of an in-flight place-order saga
type CancelOrderCommand struct {
	SagaID string `json:"saga_id"`
}

// CancelOrder marks the saga for cancellation. The in-flight step is never
// abandoned; the executor unwinds through compensation at the next safe
// checkpoint.
type CancelOrder struct {
	executor *saga.Executor
}

// NewCancelOrder creates a new CancelOrder use case
func NewCancelOrder(executor *saga.Executor) *CancelOrder {
	return &CancelOrder{executor: executor}
}

// Execute executes the cancel order use case
func (uc *CancelOrder) Execute(ctx context.Context, cmd *CancelOrderCommand) error {
	sagaID, err := models.NewID(cmd.SagaID)
	if err != nil {
		return errors.Wrap(err, "invalid saga ID")
	}

	return uc.executor.RequestCancel(ctx, sagaID)
}
