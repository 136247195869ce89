package domain

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/events"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusInitiated OrderStatus = "initiated"
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is one line of an order
type OrderItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Order aggregate root
type Order struct {
	ID         models.ID
	UserID     models.ID
	Items      []OrderItem
	Total      models.Money
	Status     OrderStatus
	Timestamps models.Timestamps
	Version    models.Version

	events []*events.Event
}

// CreateOrder factory method
func CreateOrder(userID models.ID, items []OrderItem, total models.Money) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order requires at least one item")
	}
	for _, item := range items {
		if item.SKU == "" || item.Quantity <= 0 {
			return nil, errors.New("order items require a SKU and a positive quantity")
		}
	}
	if !total.IsPositive() {
		return nil, errors.New("order total must be positive")
	}

	order := &Order{
		ID:         models.GenerateUUID(),
		UserID:     userID,
		Items:      items,
		Total:      total,
		Status:     OrderStatusInitiated,
		Timestamps: models.NewTimestamps(),
		Version:    models.NewVersion(),
	}

	event := events.NewEvent(order.ID, events.OrderPlacementRequestedEvent, OrderPlacementRequestedData{
		OrderID: order.ID,
		UserID:  order.UserID,
		Items:   order.Items,
		Total:   order.Total,
	})

	order.recordEvent(event)
	return order, nil
}

// MarkPlaced marks the order as successfully placed
func (o *Order) MarkPlaced() error {
	if o.Status != OrderStatusInitiated {
		return errors.Errorf("order can only be placed from initiated status, got %s", o.Status)
	}

	o.Status = OrderStatusPlaced
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	event := events.NewEvent(o.ID, events.OrderPlacedEvent, OrderPlacedData{
		OrderID:  o.ID,
		UserID:   o.UserID,
		PlacedAt: time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// MarkFailed marks the order as failed
func (o *Order) MarkFailed(reason string) error {
	if o.Status == OrderStatusPlaced {
		return errors.New("cannot fail a placed order")
	}

	o.Status = OrderStatusFailed
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	event := events.NewEvent(o.ID, events.OrderPlacementFailedEvent, OrderPlacementFailedData{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Reason:   reason,
		FailedAt: time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// Cancel marks the order as cancelled
func (o *Order) Cancel() error {
	if o.Status == OrderStatusPlaced {
		return errors.New("cannot cancel a placed order")
	}

	o.Status = OrderStatusCancelled
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	event := events.NewEvent(o.ID, events.OrderCancelledEvent, OrderCancelledData{
		OrderID:     o.ID,
		UserID:      o.UserID,
		CancelledAt: time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// Events returns domain events
func (o *Order) Events() []*events.Event {
	return o.events
}

// ClearEvents clears domain events
func (o *Order) ClearEvents() {
	o.events = make([]*events.Event, 0)
}

func (o *Order) recordEvent(event *events.Event) {
	o.events = append(o.events, event)
}

// OrderSagaInput is the initial input of the place-order saga, recorded on
// the saga instance and handed to every step
type OrderSagaInput struct {
	OrderID models.ID    `json:"order_id"`
	UserID  models.ID    `json:"user_id"`
	Items   []OrderItem  `json:"items"`
	Total   models.Money `json:"total"`
}

// Event Data Structures
type OrderPlacementRequestedData struct {
	OrderID models.ID    `json:"order_id"`
	UserID  models.ID    `json:"user_id"`
	Items   []OrderItem  `json:"items"`
	Total   models.Money `json:"total"`
}

type OrderPlacedData struct {
	OrderID  models.ID `json:"order_id"`
	UserID   models.ID `json:"user_id"`
	PlacedAt time.Time `json:"placed_at"`
}

type OrderPlacementFailedData struct {
	OrderID  models.ID `json:"order_id"`
	UserID   models.ID `json:"user_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

type OrderCancelledData struct {
	OrderID     models.ID `json:"order_id"`
	UserID      models.ID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// ErrOrderNotFound is returned when the order does not exist
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository interface
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
}
