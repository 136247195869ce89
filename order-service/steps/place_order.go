package steps

import (
	"time"

	"github.com/draftea/saga-orchestrator/shared/saga"
)

// PlaceOrderDefinitionID identifies the place-order saga type
const PlaceOrderDefinitionID = "place-order"

// Step names within the place-order definition
const (
	StepReserveInventory = "reserve-inventory"
	StepChargePayment    = "charge-payment"
	StepCreateShipment   = "create-shipment"
)

// Step indices, used when a later step reads an earlier step's output
const (
	reserveInventoryIndex = 0
)

// NewPlaceOrderDefinition builds the place-order saga definition:
// reserve inventory, charge payment, create shipment. Creating the shipment
// is the final, fully committing action and carries no compensation.
func NewPlaceOrderDefinition(
	inventory InventoryClient,
	payments PaymentGateway,
	shipments ShipmentClient,
	middleware ...saga.StepMiddleware,
) (*saga.Definition, error) {
	retry := saga.RetryPolicy{
		MaxAttempts:       4,
		InitialBackoff:    250 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
		AttemptTimeout:    15 * time.Second,
	}

	return saga.NewDefinition(PlaceOrderDefinitionID,
		saga.StepDefinition{
			Name:  StepReserveInventory,
			Step:  saga.Chain(StepReserveInventory, NewReserveInventoryStep(inventory), middleware...),
			Retry: retry,
		},
		saga.StepDefinition{
			Name:  StepChargePayment,
			Step:  saga.Chain(StepChargePayment, NewChargePaymentStep(payments), middleware...),
			Retry: retry,
		},
		saga.StepDefinition{
			Name:             StepCreateShipment,
			Step:             saga.Chain(StepCreateShipment, NewCreateShipmentStep(shipments), middleware...),
			Retry:            retry,
			NonCompensatable: true,
		},
	)
}
