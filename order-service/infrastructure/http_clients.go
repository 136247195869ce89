package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/order-service/steps"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

const idempotencyKeyHeader = "Idempotency-Key"

// httpCollaborator is the shared transport for the inventory, payment and
// shipping clients. Transport errors and 5xx responses surface as
// steps.ErrUnavailable so the steps classify them retryable; 4xx responses
// carry the collaborator's business rejection.
type httpCollaborator struct {
	baseURL string
	client  *http.Client
}

func newHTTPCollaborator(baseURL string, timeout time.Duration) httpCollaborator {
	return httpCollaborator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c httpCollaborator) post(ctx context.Context, path string, idempotencyKey string, payload interface{}, out interface{}, reject error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyKeyHeader, idempotencyKey)

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(steps.ErrUnavailable, "request to %s failed: %v", path, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 500:
		return errors.Wrapf(steps.ErrUnavailable, "%s returned %d", path, res.StatusCode)
	case res.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return errors.Wrapf(reject, "%s returned %d: %s", path, res.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(steps.ErrUnavailable, "invalid response from %s: %v", path, err)
	}
	return nil
}

// HTTPInventoryClient implements steps.InventoryClient over HTTP
type HTTPInventoryClient struct {
	httpCollaborator
}

// NewHTTPInventoryClient creates a new inventory client
func NewHTTPInventoryClient(baseURL string, timeout time.Duration) *HTTPInventoryClient {
	return &HTTPInventoryClient{newHTTPCollaborator(baseURL, timeout)}
}

// Reserve reserves stock for the order
func (c *HTTPInventoryClient) Reserve(ctx context.Context, idempotencyKey string, orderID models.ID, items []domain.OrderItem) (string, error) {
	var res struct {
		ReservationID string `json:"reservation_id"`
	}
	err := c.post(ctx, "/reservations", idempotencyKey, map[string]interface{}{
		"order_id": orderID.String(),
		"items":    items,
	}, &res, steps.ErrInsufficientStock)
	if err != nil {
		return "", err
	}
	return res.ReservationID, nil
}

// Release releases a previously made reservation
func (c *HTTPInventoryClient) Release(ctx context.Context, idempotencyKey string, reservationID string) error {
	path := fmt.Sprintf("/reservations/%s/release", reservationID)
	return c.post(ctx, path, idempotencyKey, struct{}{}, nil, steps.ErrUnavailable)
}

// HTTPPaymentGateway implements steps.PaymentGateway over HTTP
type HTTPPaymentGateway struct {
	httpCollaborator
}

// NewHTTPPaymentGateway creates a new payment gateway client
func NewHTTPPaymentGateway(baseURL string, timeout time.Duration) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{newHTTPCollaborator(baseURL, timeout)}
}

// Charge charges the order amount
func (c *HTTPPaymentGateway) Charge(ctx context.Context, idempotencyKey string, orderID models.ID, amount models.Money) (string, error) {
	var res struct {
		ChargeID string `json:"charge_id"`
	}
	err := c.post(ctx, "/charges", idempotencyKey, map[string]interface{}{
		"order_id": orderID.String(),
		"amount":   amount.Amount,
		"currency": amount.Currency,
	}, &res, steps.ErrCardDeclined)
	if err != nil {
		return "", err
	}
	return res.ChargeID, nil
}

// Refund refunds a previously made charge
func (c *HTTPPaymentGateway) Refund(ctx context.Context, idempotencyKey string, chargeID string) error {
	path := fmt.Sprintf("/charges/%s/refund", chargeID)
	return c.post(ctx, path, idempotencyKey, struct{}{}, nil, steps.ErrUnavailable)
}

// HTTPShipmentClient implements steps.ShipmentClient over HTTP
type HTTPShipmentClient struct {
	httpCollaborator
}

// NewHTTPShipmentClient creates a new shipment client
func NewHTTPShipmentClient(baseURL string, timeout time.Duration) *HTTPShipmentClient {
	return &HTTPShipmentClient{newHTTPCollaborator(baseURL, timeout)}
}

// CreateShipment creates the shipment for a reservation
func (c *HTTPShipmentClient) CreateShipment(ctx context.Context, idempotencyKey string, orderID models.ID, reservationID string) (string, error) {
	var res struct {
		ShipmentID string `json:"shipment_id"`
	}
	err := c.post(ctx, "/shipments", idempotencyKey, map[string]interface{}{
		"order_id":       orderID.String(),
		"reservation_id": reservationID,
	}, &res, steps.ErrShipmentRejected)
	if err != nil {
		return "", err
	}
	return res.ShipmentID, nil
}
