package saga

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// StepMiddleware wraps a StepContract with cross-cutting behavior. Middleware
// composes as plain functions around the contract; apply them at definition
// build time with Chain.
type StepMiddleware func(name string, next StepContract) StepContract

// Chain applies middleware around a step, first middleware outermost
func Chain(name string, step StepContract, middleware ...StepMiddleware) StepContract {
	for i := len(middleware) - 1; i >= 0; i-- {
		step = middleware[i](name, step)
	}
	return step
}

// LoggingMiddleware logs every step invocation and its outcome
func LoggingMiddleware() StepMiddleware {
	return func(name string, next StepContract) StepContract {
		return StepFunc{
			ExecuteFunc: func(ctx context.Context, key IdempotencyKey, input StepInput) (json.RawMessage, error) {
				output, err := next.Execute(ctx, key, input)
				if err != nil {
					log.Printf("saga %s: step %s failed: %v", input.SagaID, name, err)
					return nil, err
				}
				log.Printf("saga %s: step %s completed", input.SagaID, name)
				return output, nil
			},
			CompensateFunc: func(ctx context.Context, key IdempotencyKey, output json.RawMessage) error {
				if err := next.Compensate(ctx, key, output); err != nil {
					log.Printf("step %s compensation failed: %v", name, err)
					return err
				}
				log.Printf("step %s compensated", name)
				return nil
			},
		}
	}
}

// TelemetryMiddleware records a span and duration metrics per step invocation
func TelemetryMiddleware() StepMiddleware {
	return func(name string, next StepContract) StepContract {
		return StepFunc{
			ExecuteFunc: func(ctx context.Context, key IdempotencyKey, input StepInput) (json.RawMessage, error) {
				ctx, span := telemetry.StartSpan(ctx, "saga.step.execute")
				defer span.End()
				span.SetAttributes(attribute.String("step", name))

				start := time.Now()
				output, err := next.Execute(ctx, key, input)

				telemetry.RecordHistogram(ctx, "saga_step_duration_seconds",
					"Saga step execution duration", time.Since(start).Seconds(),
					attribute.String("step", name),
					attribute.Bool("success", err == nil),
				)
				return output, err
			},
			CompensateFunc: func(ctx context.Context, key IdempotencyKey, output json.RawMessage) error {
				ctx, span := telemetry.StartSpan(ctx, "saga.step.compensate")
				defer span.End()
				span.SetAttributes(attribute.String("step", name))

				start := time.Now()
				err := next.Compensate(ctx, key, output)

				telemetry.RecordHistogram(ctx, "saga_step_compensation_duration_seconds",
					"Saga step compensation duration", time.Since(start).Seconds(),
					attribute.String("step", name),
					attribute.Bool("success", err == nil),
				)
				return err
			},
		}
	}
}
