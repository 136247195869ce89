package steps

import (
	"context"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// Collaborator errors. Clients classify their transport and protocol
// failures into these sentinels; the steps map them onto the saga error
// taxonomy.
var (
	// ErrUnavailable marks transient collaborator failures (timeouts, 5xx)
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrInsufficientStock is the inventory service's business rejection
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCardDeclined is the payment gateway's business rejection
	ErrCardDeclined = errors.New("card declined")

	// ErrShipmentRejected is the shipping service's business rejection
	ErrShipmentRejected = errors.New("shipment rejected")
)

// InventoryClient reaches the inventory service. The service is required to
// deduplicate by the idempotency key: a repeated Reserve with the same key
// must return the original reservation, not create a second one.
type InventoryClient interface {
	Reserve(ctx context.Context, idempotencyKey string, orderID models.ID, items []domain.OrderItem) (string, error)
	Release(ctx context.Context, idempotencyKey string, reservationID string) error
}

// PaymentGateway reaches the payment service; same idempotency contract
type PaymentGateway interface {
	Charge(ctx context.Context, idempotencyKey string, orderID models.ID, amount models.Money) (string, error)
	Refund(ctx context.Context, idempotencyKey string, chargeID string) error
}

// ShipmentClient reaches the shipping service; same idempotency contract
type ShipmentClient interface {
	CreateShipment(ctx context.Context, idempotencyKey string, orderID models.ID, reservationID string) (string, error)
}

// classify maps a collaborator error onto the saga error taxonomy.
// Unclassified errors are treated as fatal: compensating work that may not
// have happened is safe, repeating work that may have happened is not.
func classify(err error) error {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return saga.Retryable(err)
	}
	return saga.Fatal(err)
}
