package saga

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
)

var (
	// ErrSagaNotFound is returned when no instance exists for the given ID
	ErrSagaNotFound = errors.New("saga instance not found")

	// ErrConcurrencyConflict is returned by TryPut when the stored version no
	// longer matches the expected one: another executor run raced this one.
	// Callers must reload and reassess, never blindly overwrite.
	ErrConcurrencyConflict = errors.New("saga version conflict")
)

// StateStore is the durable persistence contract for saga instances.
//
// TryPut is the only write path. On success the store assigns
// expectedVersion+1 and a fresh UpdatedAt to the written record and mirrors
// both back into the passed instance. An expectedVersion of zero means the
// instance is being created. The write must be atomic at the storage layer
// (single-row conditional update or equivalent).
type StateStore interface {
	Get(ctx context.Context, sagaID models.ID) (*Instance, error)
	TryPut(ctx context.Context, instance *Instance, expectedVersion int64) error
	QueryByStatus(ctx context.Context, status Status, olderThan time.Time) ([]*Instance, error)
}

// MemoryStore is the reference in-memory StateStore with real CAS semantics.
// It backs tests and local single-process runs.
type MemoryStore struct {
	mux       sync.RWMutex
	instances map[models.ID]*Instance
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[models.ID]*Instance)}
}

// Get retrieves an instance by ID
func (s *MemoryStore) Get(ctx context.Context, sagaID models.ID) (*Instance, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	stored, ok := s.instances[sagaID]
	if !ok {
		return nil, errors.Wrapf(ErrSagaNotFound, "saga %s", sagaID)
	}
	return stored.Clone(), nil
}

// TryPut writes the instance if the stored version matches expectedVersion
func (s *MemoryStore) TryPut(ctx context.Context, instance *Instance, expectedVersion int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	stored, exists := s.instances[instance.SagaID]

	if expectedVersion == 0 {
		if exists {
			return errors.Wrapf(ErrConcurrencyConflict, "saga %s already exists", instance.SagaID)
		}
	} else {
		if !exists {
			return errors.Wrapf(ErrSagaNotFound, "saga %s", instance.SagaID)
		}
		if stored.Version != expectedVersion {
			return errors.Wrapf(ErrConcurrencyConflict,
				"saga %s: expected version %d, stored %d", instance.SagaID, expectedVersion, stored.Version)
		}
	}

	instance.Version = expectedVersion + 1
	instance.UpdatedAt = time.Now()
	s.instances[instance.SagaID] = instance.Clone()
	return nil
}

// QueryByStatus returns instances in the given status not updated since olderThan
func (s *MemoryStore) QueryByStatus(ctx context.Context, status Status, olderThan time.Time) ([]*Instance, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	var result []*Instance
	for _, stored := range s.instances {
		if stored.Status == status && stored.UpdatedAt.Before(olderThan) {
			result = append(result, stored.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}
