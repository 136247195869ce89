package saga

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_ScanOnce_RedrivesAbandonedInstances(t *testing.T) {
	trace := &callTrace{}
	def := buildDefinition(t, "test-saga",
		StepDefinition{Name: "only", Step: &scriptedStep{name: "only", trace: trace}, Retry: fastRetry()},
	)

	executor, store := buildExecutor(t, def, nil)
	instance := startInstance(t, store, def, nil)

	supervisor := NewSupervisor(store, executor, SupervisorConfig{
		ScanInterval: time.Hour,
		// A negative lease makes freshly written instances look abandoned
		LeaseTimeout:  -time.Second,
		MaxConcurrent: 4,
	})

	dispatched, err := supervisor.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	supervisor.Stop()

	result, err := store.Get(context.Background(), instance.SagaID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"execute only"}, trace.snapshot())
}

func TestSupervisor_ScanOnce_RespectsLease(t *testing.T) {
	trace := &callTrace{}
	def := buildDefinition(t, "test-saga",
		StepDefinition{Name: "only", Step: &scriptedStep{name: "only", trace: trace}, Retry: fastRetry()},
	)

	executor, store := buildExecutor(t, def, nil)
	startInstance(t, store, def, nil)

	supervisor := NewSupervisor(store, executor, SupervisorConfig{
		ScanInterval:  time.Hour,
		LeaseTimeout:  time.Hour,
		MaxConcurrent: 4,
	})

	// The instance was written just now, so its owner still holds the lease
	dispatched, err := supervisor.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched)
	assert.Empty(t, trace.snapshot())
}

func TestSupervisor_ScanOnce_RedrivesCompensationFailedWhenEnabled(t *testing.T) {
	trace := &callTrace{}
	first := &scriptedStep{name: "first", trace: trace}
	def := buildDefinition(t, "test-saga",
		StepDefinition{Name: "first", Step: first, Retry: fastRetry()},
		StepDefinition{Name: "second", Step: &scriptedStep{name: "second", trace: trace}, Retry: fastRetry()},
	)

	executor, store := buildExecutor(t, def, nil)

	// A saga parked after a failed compensation of its first step
	instance := NewInstance(def, "", nil)
	instance.Status = StatusRunning
	instance.RecordStepOutput(json.RawMessage(`{"step":"first"}`))
	instance.BeginCompensation("card declined")
	instance.Status = StatusCompensationFailed
	instance.FailureReason = NewCompensationError("first", errors.New("release rejected")).Error()
	require.NoError(t, store.TryPut(context.Background(), instance, 0))

	defaultSup := NewSupervisor(store, executor, SupervisorConfig{
		ScanInterval:  time.Hour,
		LeaseTimeout:  -time.Second,
		MaxConcurrent: 4,
	})
	dispatched, err := defaultSup.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched, "compensation-failed redrive is opt-in")
	defaultSup.Stop()

	redriveSup := NewSupervisor(store, executor, SupervisorConfig{
		ScanInterval:              time.Hour,
		LeaseTimeout:              -time.Second,
		MaxConcurrent:             4,
		RedriveCompensationFailed: true,
	})
	dispatched, err = redriveSup.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	redriveSup.Stop()

	result, err := store.Get(context.Background(), instance.SagaID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, first.compCalls)
}

func TestSupervisor_StartAndStop(t *testing.T) {
	trace := &callTrace{}
	def := buildDefinition(t, "test-saga",
		StepDefinition{Name: "only", Step: &scriptedStep{name: "only", trace: trace}, Retry: fastRetry()},
	)

	executor, store := buildExecutor(t, def, nil)
	instance := startInstance(t, store, def, nil)

	supervisor := NewSupervisor(store, executor, SupervisorConfig{
		ScanInterval:  time.Hour,
		LeaseTimeout:  -time.Second,
		MaxConcurrent: 4,
	})

	// Start runs an immediate scan; Stop waits for the dispatch to finish
	supervisor.Start(context.Background())
	supervisor.Stop()

	result, err := store.Get(context.Background(), instance.SagaID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}
