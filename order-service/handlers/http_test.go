package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/draftea/saga-orchestrator/order-service/application"
	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/order-service/mocks"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	router *chi.Mux
	store  *saga.MemoryStore
	repo   *mocks.MockOrderRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	def, err := saga.NewDefinition("place-order",
		saga.StepDefinition{Name: "noop", Step: saga.StepFunc{
			ExecuteFunc: func(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		}},
	)
	require.NoError(t, err)

	registry := saga.NewRegistry()
	require.NoError(t, registry.Register(def))

	store := saga.NewMemoryStore()
	executor := saga.NewExecutor(registry, store, nil)
	repo := mocks.NewMockOrderRepository(t)

	handlers := NewOrderHandlers(
		application.NewPlaceOrder(repo, store, def, executor),
		application.NewGetSaga(store, registry),
		application.NewCancelOrder(executor),
		application.NewResumeCompensation(executor),
	)

	router := chi.NewRouter()
	handlers.RegisterRoutes(router)

	return &handlerFixture{router: router, store: store, repo: repo}
}

func (f *handlerFixture) storeSaga(t *testing.T, status saga.Status) *saga.Instance {
	t.Helper()
	def, err := saga.NewDefinition("stored",
		saga.StepDefinition{Name: "noop", Step: saga.StepFunc{
			ExecuteFunc: func(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
				return nil, nil
			},
		}},
	)
	require.NoError(t, err)

	instance := saga.NewInstance(def, "", nil)
	instance.Status = status
	require.NoError(t, f.store.TryPut(context.Background(), instance, 0))
	return instance
}

func TestOrderHandlers_PlaceOrder(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()

	body, err := json.Marshal(application.PlaceOrderCommand{
		UserID:   "550e8400-e29b-41d4-a716-446655440010",
		Items:    []domain.OrderItem{{SKU: "SKU-1", Quantity: 1}},
		Amount:   10000,
		Currency: "USD",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var response application.PlaceOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.NotEmpty(t, response.SagaID)
	assert.Equal(t, string(saga.StatusPending), response.Status)
}

func TestOrderHandlers_PlaceOrder_InvalidBody(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlers_GetSaga(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("unknown saga", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sagas/550e8400-e29b-41d4-a716-446655440099/", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("known saga", func(t *testing.T) {
		// The fixture registry only knows "place-order", so store under it
		instance := f.storeSaga(t, saga.StatusPending)
		stored, err := f.store.Get(context.Background(), instance.SagaID)
		require.NoError(t, err)
		stored.DefinitionID = "place-order"
		require.NoError(t, f.store.TryPut(context.Background(), stored, stored.Version))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/sagas/"+instance.SagaID.String()+"/", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var response application.GetSagaResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, instance.SagaID.String(), response.SagaID)
		assert.Equal(t, string(saga.StatusPending), response.Status)
	})
}

func TestOrderHandlers_CancelOrder(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("unknown saga", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sagas/550e8400-e29b-41d4-a716-446655440099/cancel", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("active saga", func(t *testing.T) {
		instance := f.storeSaga(t, saga.StatusRunning)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sagas/"+instance.SagaID.String()+"/cancel", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		stored, err := f.store.Get(context.Background(), instance.SagaID)
		require.NoError(t, err)
		assert.True(t, stored.CancelRequested)
	})

	t.Run("terminal saga", func(t *testing.T) {
		instance := f.storeSaga(t, saga.StatusCompleted)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sagas/"+instance.SagaID.String()+"/cancel", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestOrderHandlers_ResumeCompensation(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("saga not parked", func(t *testing.T) {
		instance := f.storeSaga(t, saga.StatusRunning)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sagas/"+instance.SagaID.String()+"/resume-compensation", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown saga", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sagas/550e8400-e29b-41d4-a716-446655440099/resume-compensation", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
