// Package model defines the persistent entities of the shop bot.
package model

import "time"

// Status describes the lifecycle stage of an order.
type Status string

const (
	// StatusConfirmed marks a freshly accepted order.
	StatusConfirmed Status = "order_confirmed"
	// StatusUpdated marks an order whose data was changed by the user.
	StatusUpdated Status = "updated"
	// StatusDelayed marks an order reported as not delivered for over two months.
	StatusDelayed Status = "delayed"
	// StatusReturnRequested marks an order with a pending return request.
	StatusReturnRequested Status = "return_requested"
)

// Order is a persisted record of purchase intent submitted by a user.
type Order struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Data      string    `db:"order_data"`
	Status    Status    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderNote is an immutable annotation attached to an order, e.g. a return reason.
type OrderNote struct {
	ID        int64     `db:"id"`
	OrderID   int64     `db:"order_id"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
}
