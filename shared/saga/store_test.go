package saga

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstance(sagaID models.ID) *Instance {
	now := time.Now()
	return &Instance{
		SagaID:             sagaID,
		DefinitionID:       "test-saga",
		Status:             StatusPending,
		CompensationCursor: -1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestMemoryStore_TryPut(t *testing.T) {
	ctx := context.Background()

	t.Run("insert with expected version zero", func(t *testing.T) {
		store := NewMemoryStore()
		instance := testInstance(models.GenerateUUID())

		err := store.TryPut(ctx, instance, 0)

		require.NoError(t, err)
		assert.Equal(t, int64(1), instance.Version)

		stored, err := store.Get(ctx, instance.SagaID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("insert conflicts when the instance exists", func(t *testing.T) {
		store := NewMemoryStore()
		instance := testInstance(models.GenerateUUID())
		require.NoError(t, store.TryPut(ctx, instance, 0))

		duplicate := testInstance(instance.SagaID)
		err := store.TryPut(ctx, duplicate, 0)

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
	})

	t.Run("update bumps the version on match", func(t *testing.T) {
		store := NewMemoryStore()
		instance := testInstance(models.GenerateUUID())
		require.NoError(t, store.TryPut(ctx, instance, 0))

		instance.Status = StatusRunning
		err := store.TryPut(ctx, instance, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(2), instance.Version)

		stored, err := store.Get(ctx, instance.SagaID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, stored.Status)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("update conflicts on stale version", func(t *testing.T) {
		store := NewMemoryStore()
		instance := testInstance(models.GenerateUUID())
		require.NoError(t, store.TryPut(ctx, instance, 0))
		require.NoError(t, store.TryPut(ctx, instance, 1))

		stale := testInstance(instance.SagaID)
		err := store.TryPut(ctx, stale, 1)

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
	})

	t.Run("update of a missing instance", func(t *testing.T) {
		store := NewMemoryStore()
		instance := testInstance(models.GenerateUUID())

		err := store.TryPut(ctx, instance, 3)

		assert.ErrorIs(t, err, ErrSagaNotFound)
	})
}

func TestMemoryStore_Get(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, models.GenerateUUID())
	assert.ErrorIs(t, err, ErrSagaNotFound)

	instance := testInstance(models.GenerateUUID())
	instance.StepOutputs = []json.RawMessage{json.RawMessage(`{"n":1}`)}
	require.NoError(t, store.TryPut(ctx, instance, 0))

	// Mutating the returned copy must not leak into the store
	got, err := store.Get(ctx, instance.SagaID)
	require.NoError(t, err)
	got.Status = StatusCompleted
	got.StepOutputs[0][0] = 'X'

	fresh, err := store.Get(ctx, instance.SagaID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)
	assert.JSONEq(t, `{"n":1}`, string(fresh.StepOutputs[0]))
}

func TestMemoryStore_QueryByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	stale := testInstance(models.GenerateUUID())
	stale.Status = StatusRunning
	require.NoError(t, store.TryPut(ctx, stale, 0))

	completed := testInstance(models.GenerateUUID())
	completed.Status = StatusCompleted
	require.NoError(t, store.TryPut(ctx, completed, 0))

	// Everything written above is older than a cutoff in the future
	cutoff := time.Now().Add(time.Minute)

	running, err := store.QueryByStatus(ctx, StatusRunning, cutoff)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, stale.SagaID, running[0].SagaID)

	// A cutoff in the past excludes freshly written instances
	none, err := store.QueryByStatus(ctx, StatusRunning, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)
}
