package application

import (
	"context"
	"encoding/json"
	"log"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

const cancellationReason = "cancellation requested"

// FinalizeOrder reacts to saga transition events and settles the order
// aggregate once its saga reaches a terminal state. Completed sagas mark the
// order placed; fully compensated sagas mark it failed, or cancelled when the
// unwind was operator-requested. Compensation-failed sagas are left alone
// until the redrive settles them.
type FinalizeOrder struct {
	orderRepository domain.OrderRepository
	sagaStore       saga.StateStore
	publisher       events.Publisher
}

// NewFinalizeOrder creates a new FinalizeOrder handler
func NewFinalizeOrder(
	orderRepository domain.OrderRepository,
	sagaStore saga.StateStore,
	publisher events.Publisher,
) *FinalizeOrder {
	return &FinalizeOrder{
		orderRepository: orderRepository,
		sagaStore:       sagaStore,
		publisher:       publisher,
	}
}

// Handle handles saga transition events
func (h *FinalizeOrder) Handle(ctx context.Context, event *events.Event) error {
	var transition saga.TransitionData
	if err := event.UnmarshalPayload(&transition); err != nil {
		return errors.Wrap(err, "failed to unmarshal transition data")
	}

	switch transition.ToStatus {
	case saga.StatusCompleted, saga.StatusFailed:
	default:
		return nil
	}

	instance, err := h.sagaStore.Get(ctx, transition.SagaID)
	if err != nil {
		return errors.Wrap(err, "failed to load saga instance")
	}

	var input domain.OrderSagaInput
	if err := json.Unmarshal(instance.Input, &input); err != nil {
		return errors.Wrap(err, "failed to unmarshal saga input")
	}

	order, err := h.orderRepository.FindByID(ctx, input.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find order")
	}

	switch {
	case transition.ToStatus == saga.StatusCompleted:
		err = order.MarkPlaced()
	case instance.FailureReason == cancellationReason:
		err = order.Cancel()
	default:
		err = order.MarkFailed(instance.FailureReason)
	}
	if err != nil {
		// Duplicate delivery lands here once the order already settled
		log.Printf("order %s already settled for saga %s: %v", order.ID, instance.SagaID, err)
		return nil
	}

	if err := h.orderRepository.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to save order")
	}

	if err := h.publisher.Publish(ctx, order.Events()...); err != nil {
		return errors.Wrap(err, "failed to publish order events")
	}
	order.ClearEvents()

	return nil
}
