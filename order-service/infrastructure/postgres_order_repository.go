package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/saga-orchestrator/order-service/domain"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL
//
// Schema:
//
//	CREATE TABLE orders (
//	    id         UUID PRIMARY KEY,
//	    user_id    UUID        NOT NULL,
//	    items      JSONB       NOT NULL,
//	    amount     BIGINT      NOT NULL,
//	    currency   TEXT        NOT NULL,
//	    status     TEXT        NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    version    INTEGER     NOT NULL
//	);
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// postgresOrder represents order in database
type postgresOrder struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Items     []byte    `db:"items"`
	Amount    int64     `db:"amount"`
	Currency  string    `db:"currency"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Version   int       `db:"version"`
}

// Save inserts a fresh order and updates an existing one with an optimistic
// lock on its version
func (r *PostgresOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order.Version.Value == 1 {
		return r.insertOrder(ctx, order)
	}
	return r.updateOrder(ctx, order)
}

func (r *PostgresOrderRepository) insertOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, items, amount, currency, status,
			created_at, updated_at, version
		) VALUES (
			:id, :user_id, :items, :amount, :currency, :status,
			:created_at, :updated_at, :version
		)`

	pgOrder, err := r.toPostgres(order)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, query, pgOrder)
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	return nil
}

func (r *PostgresOrderRepository) updateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = :status, updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          order.ID.String(),
		"status":      string(order.Status),
		"updated_at":  order.Timestamps.UpdatedAt,
		"version":     order.Version.Value,
		"old_version": order.Version.Value - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return errors.Errorf("order %s was modified concurrently", order.ID)
	}

	return nil
}

// FindByID finds an order by ID
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	query := `
		SELECT id, user_id, items, amount, currency, status,
			   created_at, updated_at, version
		FROM orders
		WHERE id = $1`

	var pgOrder postgresOrder
	err := r.db.GetContext(ctx, &pgOrder, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "failed to find order")
	}

	return r.toDomain(&pgOrder)
}

// toPostgres converts domain order to postgres model
func (r *PostgresOrderRepository) toPostgres(order *domain.Order) (*postgresOrder, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal order items")
	}

	return &postgresOrder{
		ID:        order.ID.String(),
		UserID:    order.UserID.String(),
		Items:     items,
		Amount:    order.Total.Amount,
		Currency:  order.Total.Currency,
		Status:    string(order.Status),
		CreatedAt: order.Timestamps.CreatedAt,
		UpdatedAt: order.Timestamps.UpdatedAt,
		Version:   order.Version.Value,
	}, nil
}

// toDomain converts postgres model to domain order
func (r *PostgresOrderRepository) toDomain(pgOrder *postgresOrder) (*domain.Order, error) {
	id, err := models.NewID(pgOrder.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	userID, err := models.NewID(pgOrder.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user ID")
	}

	var items []domain.OrderItem
	if err := json.Unmarshal(pgOrder.Items, &items); err != nil {
		return nil, errors.Wrap(err, "invalid order items")
	}

	order := &domain.Order{
		ID:     id,
		UserID: userID,
		Items:  items,
		Total:  models.NewMoney(pgOrder.Amount, pgOrder.Currency),
		Status: domain.OrderStatus(pgOrder.Status),
		Timestamps: models.Timestamps{
			CreatedAt: pgOrder.CreatedAt,
			UpdatedAt: pgOrder.UpdatedAt,
		},
		Version: models.Version{Value: pgOrder.Version},
	}

	return order, nil
}
