package application

import (
	"context"
	"encoding/json"
	"log"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// PlaceOrderCommand represents the command to place an order
type PlaceOrderCommand struct {
	UserID   string             `json:"user_id"`
	Items    []domain.OrderItem `json:"items"`
	Amount   int64              `json:"amount"`
	Currency string             `json:"currency"`
	// SagaID lets the caller supply its own saga ID to make the start
	// idempotent across client retries; generated when empty
	SagaID string `json:"saga_id,omitempty"`
}

// PlaceOrderResponse represents the response after starting the saga
type PlaceOrderResponse struct {
	OrderID string `json:"order_id"`
	SagaID  string `json:"saga_id"`
	Status  string `json:"status"`
}

// PlaceOrder creates the order aggregate and starts a place-order saga
// instance for it. The saga is persisted first and dispatched to the
// executor asynchronously; the supervisor picks it up if the dispatch is
// lost to a crash.
type PlaceOrder struct {
	orderRepository domain.OrderRepository
	sagaStore       saga.StateStore
	definition      *saga.Definition
	dispatch        func(sagaID models.ID)
}

// NewPlaceOrder creates a new PlaceOrder use case
func NewPlaceOrder(
	orderRepository domain.OrderRepository,
	sagaStore saga.StateStore,
	definition *saga.Definition,
	executor *saga.Executor,
) *PlaceOrder {
	return &PlaceOrder{
		orderRepository: orderRepository,
		sagaStore:       sagaStore,
		definition:      definition,
		dispatch: func(sagaID models.ID) {
			go func() {
				if _, err := executor.Run(context.Background(), sagaID); err != nil {
					log.Printf("saga %s run ended with: %v", sagaID, err)
				}
			}()
		},
	}
}

// Execute executes the place order use case
func (uc *PlaceOrder) Execute(ctx context.Context, cmd *PlaceOrderCommand) (*PlaceOrderResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	userID, err := models.NewID(cmd.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user ID")
	}

	var sagaID models.ID
	if cmd.SagaID != "" {
		sagaID, err = models.NewID(cmd.SagaID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid saga ID")
		}

		// A retried start with a known saga ID replays the original
		// response instead of minting a second order
		existing, err := uc.sagaStore.Get(ctx, sagaID)
		if err == nil {
			return uc.replayResponse(existing)
		}
		if !errors.Is(err, saga.ErrSagaNotFound) {
			return nil, errors.Wrap(err, "failed to load saga instance")
		}
	}

	order, err := domain.CreateOrder(userID, cmd.Items, models.NewMoney(cmd.Amount, cmd.Currency))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	input, err := json.Marshal(domain.OrderSagaInput{
		OrderID: order.ID,
		UserID:  order.UserID,
		Items:   order.Items,
		Total:   order.Total,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal saga input")
	}

	// The saga row is written first; losing the insert race must leave no
	// order behind
	instance := saga.NewInstance(uc.definition, sagaID, input)
	if err := uc.sagaStore.TryPut(ctx, instance, 0); err != nil {
		if errors.Is(err, saga.ErrConcurrencyConflict) {
			return nil, errors.Wrapf(err, "saga %s already started", instance.SagaID)
		}
		return nil, errors.Wrap(err, "failed to persist saga instance")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	uc.dispatch(instance.SagaID)

	return &PlaceOrderResponse{
		OrderID: order.ID.String(),
		SagaID:  instance.SagaID.String(),
		Status:  string(instance.Status),
	}, nil
}

// replayResponse rebuilds the start response from an already persisted saga
func (uc *PlaceOrder) replayResponse(instance *saga.Instance) (*PlaceOrderResponse, error) {
	var input domain.OrderSagaInput
	if err := json.Unmarshal(instance.Input, &input); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal saga input")
	}

	return &PlaceOrderResponse{
		OrderID: input.OrderID.String(),
		SagaID:  instance.SagaID.String(),
		Status:  string(instance.Status),
	}, nil
}

func (uc *PlaceOrder) validateCommand(cmd *PlaceOrderCommand) error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if len(cmd.Items) == 0 {
		return errors.New("at least one item is required")
	}
	if cmd.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if cmd.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}
