package steps

import (
	"context"
	"encoding/json"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// ReservationOutput is the recorded output of the reserve-inventory step
type ReservationOutput struct {
	ReservationID string `json:"reservation_id"`
}

// ReserveInventoryStep reserves the ordered items with the inventory service.
// Compensation releases the reservation.
type ReserveInventoryStep struct {
	inventory InventoryClient
}

// NewReserveInventoryStep creates the step
func NewReserveInventoryStep(inventory InventoryClient) *ReserveInventoryStep {
	return &ReserveInventoryStep{inventory: inventory}
}

// Execute reserves the items
func (s *ReserveInventoryStep) Execute(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
	var in domain.OrderSagaInput
	if err := json.Unmarshal(input.Input, &in); err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "invalid saga input"))
	}

	reservationID, err := s.inventory.Reserve(ctx, key.String(), in.OrderID, in.Items)
	if err != nil {
		return nil, classify(err)
	}

	output, err := json.Marshal(ReservationOutput{ReservationID: reservationID})
	if err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "failed to marshal reservation output"))
	}
	return output, nil
}

// Compensate releases the reservation recorded by Execute
func (s *ReserveInventoryStep) Compensate(ctx context.Context, key saga.IdempotencyKey, output json.RawMessage) error {
	var out ReservationOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return errors.Wrap(err, "invalid reservation output")
	}

	if err := s.inventory.Release(ctx, key.String(), out.ReservationID); err != nil {
		return errors.Wrapf(err, "failed to release reservation %s", out.ReservationID)
	}
	return nil
}
