package steps

import (
	"context"
	"encoding/json"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

// ChargeOutput is the recorded output of the charge-payment step
type ChargeOutput struct {
	ChargeID string `json:"charge_id"`
}

// ChargePaymentStep charges the order total through the payment gateway.
// Compensation refunds the charge.
type ChargePaymentStep struct {
	payments PaymentGateway
}

// NewChargePaymentStep creates the step
func NewChargePaymentStep(payments PaymentGateway) *ChargePaymentStep {
	return &ChargePaymentStep{payments: payments}
}

// Execute charges the order total
func (s *ChargePaymentStep) Execute(ctx context.Context, key saga.IdempotencyKey, input saga.StepInput) (json.RawMessage, error) {
	var in domain.OrderSagaInput
	if err := json.Unmarshal(input.Input, &in); err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "invalid saga input"))
	}

	chargeID, err := s.payments.Charge(ctx, key.String(), in.OrderID, in.Total)
	if err != nil {
		return nil, classify(err)
	}

	output, err := json.Marshal(ChargeOutput{ChargeID: chargeID})
	if err != nil {
		return nil, saga.Fatal(errors.Wrap(err, "failed to marshal charge output"))
	}
	return output, nil
}

// Compensate refunds the charge recorded by Execute
func (s *ChargePaymentStep) Compensate(ctx context.Context, key saga.IdempotencyKey, output json.RawMessage) error {
	var out ChargeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return errors.Wrap(err, "invalid charge output")
	}

	if err := s.payments.Refund(ctx, key.String(), out.ChargeID); err != nil {
		return errors.Wrapf(err, "failed to refund charge %s", out.ChargeID)
	}
	return nil
}
