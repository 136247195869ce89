package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresSagaStore implements saga.StateStore using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE saga_instances (
//	    saga_id             UUID PRIMARY KEY,
//	    definition_id       TEXT NOT NULL,
//	    status              TEXT NOT NULL,
//	    input               JSONB,
//	    current_step_index  INT NOT NULL,
//	    step_outputs        JSONB,
//	    compensation_cursor INT NOT NULL,
//	    attempt_generation  INT NOT NULL,
//	    cancel_requested    BOOLEAN NOT NULL,
//	    failure_reason      TEXT,
//	    version             BIGINT NOT NULL,
//	    created_at          TIMESTAMPTZ NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX saga_instances_status_updated_at_idx
//	    ON saga_instances (status, updated_at);
type PostgresSagaStore struct {
	db *sqlx.DB
}

// NewPostgresSagaStore creates a new PostgresSagaStore
func NewPostgresSagaStore(db *sqlx.DB) *PostgresSagaStore {
	return &PostgresSagaStore{db: db}
}

var _ saga.StateStore = (*PostgresSagaStore)(nil)

// postgresSagaInstance represents a saga instance row
type postgresSagaInstance struct {
	SagaID             string    `db:"saga_id"`
	DefinitionID       string    `db:"definition_id"`
	Status             string    `db:"status"`
	Input              []byte    `db:"input"`
	CurrentStepIndex   int       `db:"current_step_index"`
	StepOutputs        []byte    `db:"step_outputs"`
	CompensationCursor int       `db:"compensation_cursor"`
	AttemptGeneration  int       `db:"attempt_generation"`
	CancelRequested    bool      `db:"cancel_requested"`
	FailureReason      *string   `db:"failure_reason"`
	Version            int64     `db:"version"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Get retrieves a saga instance by ID
func (s *PostgresSagaStore) Get(ctx context.Context, sagaID models.ID) (*saga.Instance, error) {
	query := `
		SELECT saga_id, definition_id, status, input, current_step_index,
		       step_outputs, compensation_cursor, attempt_generation,
		       cancel_requested, failure_reason, version, created_at, updated_at
		FROM saga_instances
		WHERE saga_id = $1`

	var row postgresSagaInstance
	err := s.db.GetContext(ctx, &row, query, sagaID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(saga.ErrSagaNotFound, "saga %s", sagaID)
		}
		return nil, errors.Wrap(err, "failed to get saga instance")
	}

	return s.toDomain(&row)
}

// TryPut writes the instance conditionally on the stored version. An
// expected version of zero inserts a new row; anything else is a single-row
// conditional update, the sole concurrency-control mechanism of the engine.
func (s *PostgresSagaStore) TryPut(ctx context.Context, instance *saga.Instance, expectedVersion int64) error {
	row, err := s.toPostgres(instance)
	if err != nil {
		return err
	}
	row.Version = expectedVersion + 1
	row.UpdatedAt = time.Now()

	if expectedVersion == 0 {
		query := `
			INSERT INTO saga_instances (
				saga_id, definition_id, status, input, current_step_index,
				step_outputs, compensation_cursor, attempt_generation,
				cancel_requested, failure_reason, version, created_at, updated_at
			) VALUES (
				:saga_id, :definition_id, :status, :input, :current_step_index,
				:step_outputs, :compensation_cursor, :attempt_generation,
				:cancel_requested, :failure_reason, :version, :created_at, :updated_at
			) ON CONFLICT (saga_id) DO NOTHING`

		result, err := s.db.NamedExecContext(ctx, query, row)
		if err != nil {
			return errors.Wrap(err, "failed to insert saga instance")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read affected rows")
		}
		if affected == 0 {
			return errors.Wrapf(saga.ErrConcurrencyConflict, "saga %s already exists", instance.SagaID)
		}
	} else {
		query := `
			UPDATE saga_instances
			SET status = :status, current_step_index = :current_step_index,
			    step_outputs = :step_outputs, compensation_cursor = :compensation_cursor,
			    attempt_generation = :attempt_generation, cancel_requested = :cancel_requested,
			    failure_reason = :failure_reason, version = :version, updated_at = :updated_at
			WHERE saga_id = :saga_id AND version = :expected_version`

		params := map[string]interface{}{
			"saga_id":             row.SagaID,
			"status":              row.Status,
			"current_step_index":  row.CurrentStepIndex,
			"step_outputs":        row.StepOutputs,
			"compensation_cursor": row.CompensationCursor,
			"attempt_generation":  row.AttemptGeneration,
			"cancel_requested":    row.CancelRequested,
			"failure_reason":      row.FailureReason,
			"version":             row.Version,
			"updated_at":          row.UpdatedAt,
			"expected_version":    expectedVersion,
		}

		result, err := s.db.NamedExecContext(ctx, query, params)
		if err != nil {
			return errors.Wrap(err, "failed to update saga instance")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read affected rows")
		}
		if affected == 0 {
			return errors.Wrapf(saga.ErrConcurrencyConflict,
				"saga %s: expected version %d", instance.SagaID, expectedVersion)
		}
	}

	instance.Version = row.Version
	instance.UpdatedAt = row.UpdatedAt
	return nil
}

// QueryByStatus returns instances in the given status not updated since
// olderThan, oldest first. Backed by the (status, updated_at) index; this is
// the supervisor's recovery scan.
func (s *PostgresSagaStore) QueryByStatus(ctx context.Context, status saga.Status, olderThan time.Time) ([]*saga.Instance, error) {
	query := `
		SELECT saga_id, definition_id, status, input, current_step_index,
		       step_outputs, compensation_cursor, attempt_generation,
		       cancel_requested, failure_reason, version, created_at, updated_at
		FROM saga_instances
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC`

	var rows []postgresSagaInstance
	err := s.db.SelectContext(ctx, &rows, query, string(status), olderThan)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query saga instances by status")
	}

	instances := make([]*saga.Instance, len(rows))
	for i, row := range rows {
		instance, err := s.toDomain(&row)
		if err != nil {
			return nil, err
		}
		instances[i] = instance
	}
	return instances, nil
}

// toPostgres converts a domain instance to its row representation
func (s *PostgresSagaStore) toPostgres(instance *saga.Instance) (*postgresSagaInstance, error) {
	stepOutputs, err := json.Marshal(instance.StepOutputs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal step outputs")
	}

	var failureReason *string
	if instance.FailureReason != "" {
		reason := instance.FailureReason
		failureReason = &reason
	}

	return &postgresSagaInstance{
		SagaID:             instance.SagaID.String(),
		DefinitionID:       instance.DefinitionID,
		Status:             string(instance.Status),
		Input:              instance.Input,
		CurrentStepIndex:   instance.CurrentStepIndex,
		StepOutputs:        stepOutputs,
		CompensationCursor: instance.CompensationCursor,
		AttemptGeneration:  instance.AttemptGeneration,
		CancelRequested:    instance.CancelRequested,
		FailureReason:      failureReason,
		Version:            instance.Version,
		CreatedAt:          instance.CreatedAt,
		UpdatedAt:          instance.UpdatedAt,
	}, nil
}

// toDomain converts a row to a domain instance
func (s *PostgresSagaStore) toDomain(row *postgresSagaInstance) (*saga.Instance, error) {
	var stepOutputs []json.RawMessage
	if len(row.StepOutputs) > 0 {
		if err := json.Unmarshal(row.StepOutputs, &stepOutputs); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal step outputs")
		}
	}

	failureReason := ""
	if row.FailureReason != nil {
		failureReason = *row.FailureReason
	}

	return &saga.Instance{
		SagaID:             models.ID(row.SagaID),
		DefinitionID:       row.DefinitionID,
		Status:             saga.Status(row.Status),
		Input:              row.Input,
		CurrentStepIndex:   row.CurrentStepIndex,
		StepOutputs:        stepOutputs,
		CompensationCursor: row.CompensationCursor,
		AttemptGeneration:  row.AttemptGeneration,
		CancelRequested:    row.CancelRequested,
		FailureReason:      failureReason,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}
