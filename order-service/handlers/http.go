package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/draftea/saga-orchestrator/order-service/application"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	placeOrder         *application.PlaceOrder
	getSaga            *application.GetSaga
	cancelOrder        *application.CancelOrder
	resumeCompensation *application.ResumeCompensation
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(
	placeOrder *application.PlaceOrder,
	getSaga *application.GetSaga,
	cancelOrder *application.CancelOrder,
	resumeCompensation *application.ResumeCompensation,
) *OrderHandlers {
	return &OrderHandlers{
		placeOrder:         placeOrder,
		getSaga:            getSaga,
		cancelOrder:        cancelOrder,
		resumeCompensation: resumeCompensation,
	}
}

// PlaceOrder handles order placement requests
func (h *OrderHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.PlaceOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.placeOrder.Execute(r.Context(), &cmd)
	if err != nil {
		if errors.Is(err, saga.ErrConcurrencyConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// GetSaga handles saga retrieval requests
func (h *OrderHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getSaga.Execute(r.Context(), &application.GetSagaQuery{SagaID: sagaID})
	if err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// CancelOrder handles saga cancellation requests
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	err := h.cancelOrder.Execute(r.Context(), &application.CancelOrderCommand{SagaID: sagaID})
	if err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, saga.ErrConcurrencyConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// Cancelling a terminal saga is rejected by the executor
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	// Cancellation takes effect at the next safe checkpoint
	w.WriteHeader(http.StatusAccepted)
}

// ResumeCompensation handles compensation redrive requests
func (h *OrderHandlers) ResumeCompensation(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.resumeCompensation.Execute(r.Context(), &application.ResumeCompensationCommand{SagaID: sagaID})
	if err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, saga.ErrConcurrencyConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// RegisterRoutes registers order and saga routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", h.PlaceOrder)
		r.Route("/sagas/{id}", func(r chi.Router) {
			r.Get("/", h.GetSaga)
			r.Post("/cancel", h.CancelOrder)
			r.Post("/resume-compensation", h.ResumeCompensation)
		})
	})
}
