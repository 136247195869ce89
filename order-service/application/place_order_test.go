package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/order-service/mocks"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func noopDefinition(t *testing.T) *saga.Definition {
	t.Helper()
	def, err := saga.NewDefinition("place-order",
		saga.StepDefinition{Name: "noop", Step: saga.StepFunc{
			ExecuteFunc: func(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		}},
	)
	require.NoError(t, err)
	return def
}

func TestPlaceOrder_Execute(t *testing.T) {
	validUserID := "550e8400-e29b-41d4-a716-446655440010"
	validItems := []domain.OrderItem{{SKU: "SKU-1", Quantity: 1}}

	tests := []struct {
		name          string
		command       *PlaceOrderCommand
		setupMocks    func(*mocks.MockOrderRepository)
		expectedError string
	}{
		{
			name: "successful start",
			command: &PlaceOrderCommand{
				UserID:   validUserID,
				Items:    validItems,
				Amount:   10000,
				Currency: "USD",
			},
			setupMocks: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(order *domain.Order) bool {
					return order.Status == domain.OrderStatusInitiated
				})).Return(nil).Once()
			},
		},
		{
			name: "missing user ID",
			command: &PlaceOrderCommand{
				Items:    validItems,
				Amount:   10000,
				Currency: "USD",
			},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "user ID is required",
		},
		{
			name: "no items",
			command: &PlaceOrderCommand{
				UserID:   validUserID,
				Amount:   10000,
				Currency: "USD",
			},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "at least one item is required",
		},
		{
			name: "non-positive amount",
			command: &PlaceOrderCommand{
				UserID:   validUserID,
				Items:    validItems,
				Amount:   0,
				Currency: "USD",
			},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "amount must be positive",
		},
		{
			name: "missing currency",
			command: &PlaceOrderCommand{
				UserID: validUserID,
				Items:  validItems,
				Amount: 10000,
			},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "currency is required",
		},
		{
			name: "malformed user ID",
			command: &PlaceOrderCommand{
				UserID:   "not-a-uuid",
				Items:    validItems,
				Amount:   10000,
				Currency: "USD",
			},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "invalid user ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockOrderRepository(t)
			tt.setupMocks(repo)

			store := saga.NewMemoryStore()
			def := noopDefinition(t)

			uc := NewPlaceOrder(repo, store, def, nil)
			var dispatched []models.ID
			uc.dispatch = func(sagaID models.ID) {
				dispatched = append(dispatched, sagaID)
			}

			response, err := uc.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Empty(t, dispatched)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, response.OrderID)
			assert.NotEmpty(t, response.SagaID)
			assert.Equal(t, string(saga.StatusPending), response.Status)

			// The saga was persisted before dispatch
			instance, err := store.Get(context.Background(), models.ID(response.SagaID))
			require.NoError(t, err)
			assert.Equal(t, saga.StatusPending, instance.Status)

			var input domain.OrderSagaInput
			require.NoError(t, json.Unmarshal(instance.Input, &input))
			assert.Equal(t, response.OrderID, input.OrderID.String())

			require.Len(t, dispatched, 1)
			assert.Equal(t, instance.SagaID, dispatched[0])
		})
	}
}

func TestPlaceOrder_Execute_RetriedStartReplaysOriginalOrder(t *testing.T) {
	sagaID := "550e8400-e29b-41d4-a716-446655440099"
	command := &PlaceOrderCommand{
		UserID:   "550e8400-e29b-41d4-a716-446655440010",
		Items:    []domain.OrderItem{{SKU: "SKU-1", Quantity: 1}},
		Amount:   10000,
		Currency: "USD",
		SagaID:   sagaID,
	}

	repo := mocks.NewMockOrderRepository(t)
	repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()

	store := saga.NewMemoryStore()
	uc := NewPlaceOrder(repo, store, noopDefinition(t), nil)
	var dispatched []models.ID
	uc.dispatch = func(sagaID models.ID) {
		dispatched = append(dispatched, sagaID)
	}

	first, err := uc.Execute(context.Background(), command)
	require.NoError(t, err)

	// The client retry with the same saga ID gets the original order back;
	// the single Save expectation above proves no second order was persisted
	second, err := uc.Execute(context.Background(), command)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.SagaID, second.SagaID)
	assert.Len(t, dispatched, 1)
}

// stolenInsertStore reports the saga as unknown but fails the insert, the
// window where a concurrent start wins between the lookup and the write
type stolenInsertStore struct {
	*saga.MemoryStore
}

func (s *stolenInsertStore) TryPut(ctx context.Context, instance *saga.Instance, expectedVersion int64) error {
	return saga.ErrConcurrencyConflict
}

func TestPlaceOrder_Execute_LostInsertRaceSavesNoOrder(t *testing.T) {
	command := &PlaceOrderCommand{
		UserID:   "550e8400-e29b-41d4-a716-446655440010",
		Items:    []domain.OrderItem{{SKU: "SKU-1", Quantity: 1}},
		Amount:   10000,
		Currency: "USD",
		SagaID:   "550e8400-e29b-41d4-a716-446655440099",
	}

	// No Save expectation; a persisted order here would fail the mock
	repo := mocks.NewMockOrderRepository(t)
	store := &stolenInsertStore{MemoryStore: saga.NewMemoryStore()}

	uc := NewPlaceOrder(repo, store, noopDefinition(t), nil)
	var dispatched []models.ID
	uc.dispatch = func(sagaID models.ID) {
		dispatched = append(dispatched, sagaID)
	}

	_, err := uc.Execute(context.Background(), command)
	require.Error(t, err)
	assert.ErrorIs(t, err, saga.ErrConcurrencyConflict)
	assert.Contains(t, err.Error(), "already started")
	assert.Empty(t, dispatched)
}
