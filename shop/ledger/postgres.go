// Package ledger owns order records and their append-only notes.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escapismart/shopbot/shop/model"
)

// Postgres is the sqlx-backed order ledger.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres wires the ledger onto an open connection pool. opTimeout
// bounds every call; a timeout surfaces as a retryable failure.
func NewPostgres(db *sqlx.DB, opTimeout time.Duration) *Postgres {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &Postgres{db: db, timeout: opTimeout}
}

// Create inserts a new order and returns its assigned id.
func (l *Postgres) Create(ctx context.Context, userID int64, data string, status model.Status) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var id int64
	err := l.db.GetContext(ctx, &id,
		`INSERT INTO orders (user_id, order_data, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, data, string(status))
	if err != nil {
		return 0, fmt.Errorf("create order for user %d: %w", userID, err)
	}
	return id, nil
}

// UpdateStatus sets the status of an existing order.
// A missing order reports model.ErrNotFound; nothing is written.
func (l *Postgres) UpdateStatus(ctx context.Context, orderID int64, status model.Status) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), orderID)
	if err != nil {
		return fmt.Errorf("update status of order %d: %w", orderID, err)
	}
	return checkAffected(res, orderID)
}

// UpdateData replaces the free-form payload of an existing order.
func (l *Postgres) UpdateData(ctx context.Context, orderID int64, data string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx,
		`UPDATE orders SET order_data = $1, updated_at = now() WHERE id = $2`,
		data, orderID)
	if err != nil {
		return fmt.Errorf("update data of order %d: %w", orderID, err)
	}
	return checkAffected(res, orderID)
}

// Latest returns the user's most recently created order, or
// model.ErrNotFound when the user has no orders yet.
func (l *Postgres) Latest(ctx context.Context, userID int64) (model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var order model.Order
	err := l.db.GetContext(ctx, &order,
		`SELECT id, user_id, order_data, status, created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, model.ErrNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("latest order for user %d: %w", userID, err)
	}
	return order, nil
}

// AddNote appends an immutable note to an order.
func (l *Postgres) AddNote(ctx context.Context, orderID int64, note string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`,
		orderID, note)
	if err != nil {
		return fmt.Errorf("add note to order %d: %w", orderID, err)
	}
	return nil
}

// CountByStatus reports how many orders currently carry the status.
func (l *Postgres) CountByStatus(ctx context.Context, status model.Status) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var n int
	err := l.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM orders WHERE status = $1`, string(status))
	if err != nil {
		return 0, fmt.Errorf("count orders with status %q: %w", status, err)
	}
	return n, nil
}

func checkAffected(res sql.Result, orderID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %d: %w", orderID, err)
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	return nil
}
