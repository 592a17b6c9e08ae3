// Package store persists the last known conversation state per user.
// It is authoritative on restart; no in-memory copy of state exists
// outside of it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/model"
)

// Postgres is the sqlx-backed state store.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres wires the store onto an open connection pool. opTimeout
// bounds every call; a timeout surfaces as a retryable failure.
func NewPostgres(db *sqlx.DB, opTimeout time.Duration) *Postgres {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &Postgres{db: db, timeout: opTimeout}
}

// Get returns the persisted state for the user, or model.ErrNotFound
// for a first-time user.
func (s *Postgres) Get(ctx context.Context, userID int64) (engine.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw string
	err := s.db.GetContext(ctx, &raw,
		`SELECT last_state FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get state for user %d: %w", userID, err)
	}
	return engine.ParseState(raw), nil
}

// Set upserts the user's state, refreshing last_interaction. The write
// is idempotent: repeating it with the same state only moves the
// timestamp.
func (s *Postgres) Set(ctx context.Context, userID int64, state engine.State) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, last_state, last_interaction)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET last_state = EXCLUDED.last_state, last_interaction = now()`,
		userID, string(state))
	if err != nil {
		return fmt.Errorf("set state %q for user %d: %w", state, userID, err)
	}
	return nil
}
