package steps

import (
	"context"
	"encoding/json"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// ShipmentOutput is the recorded output of the create-shipment step
type ShipmentOutput struct {
	ShipmentID string `json:"shipment_id"`
}

// CreateShipmentStep creates the shipment for the reserved items. This is
// the final, fully committing step of the place-order saga and has no
// compensating action.
type CreateShipmentStep struct {
	shipments ShipmentClient
}

// NewCreateShipmentStep creates the step
func NewCreateShipmentStep(shipments ShipmentClient) *CreateShipmentStep {
	return &CreateShipmentStep{shipments: shipments}
}

// Execute creates the shipment using the reservation recorded by the
// reserve-inventory step
func (s *CreateShipmentStep) Execute(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
	var in domain.OrderSagaInput
	if err := json.Unmarshal(input.Input, &in); err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "invalid saga input"))
	}

	reservationRaw, err := input.Output(reserveInventoryIndex)
	if err != nil {
		return nil, saga.Fatal(err)
	}
	var reservation ReservationOutput
	if err := json.Unmarshal(reservationRaw, &reservation); err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "invalid reservation output"))
	}

	shipmentID, err := s.shipments.CreateShipment(ctx, key.String(), in.OrderID, reservation.ReservationID)
	if err != nil {
		return nil, classify(err)
	}

	output, err := json.Marshal(ShipmentOutput{ShipmentID: shipmentID})
	if err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "failed to marshal shipment output"))
	}
	return output, nil
}

// Compensate is never invoked: the step is declared non-compensatable
func (s *CreateShipmentStep) Compensate(ctx context.Context, key saga.IdempotencyKey, output json.RawMessage) error {
	return errors.New("create-shipment has no compensating action")
}
