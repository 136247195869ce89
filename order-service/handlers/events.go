package handlers

import (
	"context"
	"log"

	"github.com/draftea/saga-orchestrator/order-service/application"
	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/pkg/errors"
)

// OrderEventHandlers contains event handlers for the order service
type OrderEventHandlers struct {
	finalizeOrder *application.FinalizeOrder
	cancelOrder   *application.CancelOrder
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(
	finalizeOrder *application.FinalizeOrder,
	cancelOrder *application.CancelOrder,
) *OrderEventHandlers {
	return &OrderEventHandlers{
		finalizeOrder: finalizeOrder,
		cancelOrder:   cancelOrder,
	}
}

// Handle implements the events.EventHandler interface
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.SagaTransitionEvent:
		return h.finalizeOrder.Handle(ctx, event)
	case events.SagaCancellationRequestedEvent:
		return h.HandleCancellationRequest(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandleCancellationRequest handles externally requested saga cancellations
func (h *OrderEventHandlers) HandleCancellationRequest(ctx context.Context, event *events.Event) error {
	var data CancellationRequestedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to unmarshal cancellation request")
	}
	if data.SagaID == "" {
		return errors.New("saga_id is required")
	}

	err := h.cancelOrder.Execute(ctx, &application.CancelOrderCommand{SagaID: data.SagaID})
	if err != nil {
		log.Printf("failed to cancel saga %s: %v", data.SagaID, err)
		return err
	}
	return nil
}

// CancellationRequestedData is the payload of a cancellation request event
type CancellationRequestedData struct {
	SagaID string `json:"saga_id"`
	Reason string `json:"reason,omitempty"`
}
