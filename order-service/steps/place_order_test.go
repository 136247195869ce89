package steps

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/order-service/mocks"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testOrderID = models.ID("550e8400-e29b-41d4-a716-446655440001")
var testUserID = models.ID("550e8400-e29b-41d4-a716-446655440002")

func testSagaInput(t *testing.T) json.RawMessage {
	t.Helper()
	input, err := json.Marshal(domain.OrderSagaInput{
		OrderID: testOrderID,
		UserID:  testUserID,
		Items:   []domain.OrderItem{{SKU: "SKU-1", Quantity: 2}},
		Total:   models.NewMoney(10000, "USD"),
	})
	require.NoError(t, err)
	return input
}

// runPlaceOrderSaga builds the definition over the given collaborators and
// drives one instance through the executor
func runPlaceOrderSaga(
	t *testing.T,
	inventory InventoryClient,
	payments PaymentGateway,
	shipments ShipmentClient,
) (*saga.Instance, error) {
	t.Helper()

	def, err := NewPlaceOrderDefinition(inventory, payments, shipments)
	require.NoError(t, err)

	registry := saga.NewRegistry()
	require.NoError(t, registry.Register(def))

	store := saga.NewMemoryStore()
	executor := saga.NewExecutor(registry, store, nil)

	instance := saga.NewInstance(def, "", testSagaInput(t))
	require.NoError(t, store.TryPut(context.Background(), instance, 0))

	return executor.Run(context.Background(), instance.SagaID)
}

func TestPlaceOrderSaga_Completes(t *testing.T) {
	inventory := mocks.NewMockInventoryClient(t)
	payments := mocks.NewMockPaymentGateway(t)
	shipments := mocks.NewMockShipmentClient(t)

	inventory.EXPECT().
		Reserve(mock.Anything, mock.Anything, testOrderID, []domain.OrderItem{{SKU: "SKU-1", Quantity: 2}}).
		Return("res-1", nil).Once()
	payments.EXPECT().
		Charge(mock.Anything, mock.Anything, testOrderID, models.NewMoney(10000, "USD")).
		Return("ch-1", nil).Once()
	shipments.EXPECT().
		CreateShipment(mock.Anything, mock.Anything, testOrderID, "res-1").
		Return("sh-1", nil).Once()

	result, err := runPlaceOrderSaga(t, inventory, payments, shipments)

	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, result.Status)

	var shipment ShipmentOutput
	require.NoError(t, json.Unmarshal(result.StepOutputs[2], &shipment))
	assert.Equal(t, "sh-1", shipment.ShipmentID)
}

func TestPlaceOrderSaga_CardDeclinedReleasesReservation(t *testing.T) {
	inventory := mocks.NewMockInventoryClient(t)
	payments := mocks.NewMockPaymentGateway(t)
	shipments := mocks.NewMockShipmentClient(t)

	inventory.EXPECT().
		Reserve(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("res-1", nil).Once()
	// A declined card is a business rejection: exactly one attempt
	payments.EXPECT().
		Charge(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("", ErrCardDeclined).Once()
	inventory.EXPECT().
		Release(mock.Anything, mock.Anything, "res-1").
		Return(nil).Once()

	result, err := runPlaceOrderSaga(t, inventory, payments, shipments)

	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, result.Status)
	assert.Contains(t, result.FailureReason, "card declined")
}

func TestPlaceOrderSaga_RetriesUnavailableCollaborator(t *testing.T) {
	inventory := mocks.NewMockInventoryClient(t)
	payments := mocks.NewMockPaymentGateway(t)
	shipments := mocks.NewMockShipmentClient(t)

	inventory.EXPECT().
		Reserve(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("", ErrUnavailable).Twice()
	inventory.EXPECT().
		Reserve(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("res-1", nil).Once()
	payments.EXPECT().
		Charge(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("ch-1", nil).Once()
	shipments.EXPECT().
		CreateShipment(mock.Anything, mock.Anything, testOrderID, "res-1").
		Return("sh-1", nil).Once()

	result, err := runPlaceOrderSaga(t, inventory, payments, shipments)

	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, result.Status)
}

func TestPlaceOrderSaga_ShipmentRejectionUnwindsInReverseOrder(t *testing.T) {
	inventory := mocks.NewMockInventoryClient(t)
	payments := mocks.NewMockPaymentGateway(t)
	shipments := mocks.NewMockShipmentClient(t)

	var mux sync.Mutex
	var compensations []string

	inventory.EXPECT().
		Reserve(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("res-1", nil).Once()
	payments.EXPECT().
		Charge(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("ch-1", nil).Once()
	shipments.EXPECT().
		CreateShipment(mock.Anything, mock.Anything, testOrderID, "res-1").
		Return("", ErrShipmentRejected).Once()

	payments.EXPECT().
		Refund(mock.Anything, mock.Anything, "ch-1").
		Run(func(ctx context.Context, idempotencyKey string, chargeID string) {
			mux.Lock()
			compensations = append(compensations, "refund")
			mux.Unlock()
		}).
		Return(nil).Once()
	inventory.EXPECT().
		Release(mock.Anything, mock.Anything, "res-1").
		Run(func(ctx context.Context, idempotencyKey string, reservationID string) {
			mux.Lock()
			compensations = append(compensations, "release")
			mux.Unlock()
		}).
		Return(nil).Once()

	result, err := runPlaceOrderSaga(t, inventory, payments, shipments)

	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, result.Status)
	assert.Equal(t, []string{"refund", "release"}, compensations)
}

func TestReserveInventoryStep_Execute(t *testing.T) {
	tests := []struct {
		name          string
		reserveResult string
		reserveErr    error
		wantRetryable bool
		wantErr       string
	}{
		{
			name:          "success",
			reserveResult: "res-1",
		},
		{
			name:          "transient failure is retryable",
			reserveErr:    ErrUnavailable,
			wantRetryable: true,
			wantErr:       "collaborator unavailable",
		},
		{
			name:       "business rejection is fatal",
			reserveErr: ErrInsufficientStock,
			wantErr:    "insufficient stock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inventory := mocks.NewMockInventoryClient(t)
			inventory.EXPECT().
				Reserve(mock.Anything, "key-1", testOrderID, mock.Anything).
				Return(tt.reserveResult, tt.reserveErr).Once()

			step := NewReserveInventoryStep(inventory)
			output, err := step.Execute(context.Background(), saga.IdempotencyKey("key-1"), saga.StepInput{
				Input: testSagaInput(t),
			})

			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Equal(t, tt.wantRetryable, saga.IsRetryable(err))
				return
			}

			require.NoError(t, err)
			var out ReservationOutput
			require.NoError(t, json.Unmarshal(output, &out))
			assert.Equal(t, "res-1", out.ReservationID)
		})
	}
}

func TestChargePaymentStep_Timeout(t *testing.T) {
	payments := mocks.NewMockPaymentGateway(t)
	payments.EXPECT().
		Charge(mock.Anything, mock.Anything, testOrderID, mock.Anything).
		Return("", context.DeadlineExceeded).Once()

	step := NewChargePaymentStep(payments)
	_, err := step.Execute(context.Background(), saga.IdempotencyKey("key-1"), saga.StepInput{
		Input: testSagaInput(t),
	})

	require.Error(t, err)
	assert.True(t, saga.IsRetryable(err), "timeouts must be retried, never treated as rejections")
}

func TestCreateShipmentStep_ReadsReservationOutput(t *testing.T) {
	shipments := mocks.NewMockShipmentClient(t)
	shipments.EXPECT().
		CreateShipment(mock.Anything, "key-1", testOrderID, "res-1").
		Return("sh-1", nil).Once()

	step := NewCreateShipmentStep(shipments)
	output, err := step.Execute(context.Background(), saga.IdempotencyKey("key-1"), saga.StepInput{
		Input: testSagaInput(t),
		Outputs: []json.RawMessage{
			json.RawMessage(`{"reservation_id":"res-1"}`),
			json.RawMessage(`{"charge_id":"ch-1"}`),
		},
	})

	require.NoError(t, err)
	var out ShipmentOutput
	require.NoError(t, json.Unmarshal(output, &out))
	assert.Equal(t, "sh-1", out.ShipmentID)
}

func TestNewPlaceOrderDefinition_Shape(t *testing.T) {
	def, err := NewPlaceOrderDefinition(
		mocks.NewMockInventoryClient(t),
		mocks.NewMockPaymentGateway(t),
		mocks.NewMockShipmentClient(t),
	)
	require.NoError(t, err)

	assert.Equal(t, PlaceOrderDefinitionID, def.ID())
	assert.Equal(t, []string{StepReserveInventory, StepChargePayment, StepCreateShipment}, def.StepNames())
	assert.True(t, def.Step(2).NonCompensatable)
	assert.False(t, def.Step(0).NonCompensatable)
	assert.Greater(t, def.Step(0).Retry.MaxAttempts, 1)
}
