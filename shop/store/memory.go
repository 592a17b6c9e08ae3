package store

import (
	"context"
	"sync"
	"time"

	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/model"
)

type record struct {
	state           engine.State
	lastInteraction time.Time
}

// Memory is a mutex-guarded in-memory state store for tests and local
// development. It mirrors the Postgres contract, including ErrNotFound
// for first-time users.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]record
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]record)}
}

// Get returns the stored state or model.ErrNotFound.
func (m *Memory) Get(_ context.Context, userID int64) (engine.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[userID]
	if !ok {
		return "", model.ErrNotFound
	}
	return engine.ParseState(string(rec.state)), nil
}

// Set upserts the state, refreshing the interaction timestamp.
func (m *Memory) Set(_ context.Context, userID int64, state engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[userID] = record{state: state, lastInteraction: time.Now()}
	return nil
}

// LastInteraction reports the stored timestamp, for tests.
func (m *Memory) LastInteraction(userID int64) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[userID]
	return rec.lastInteraction, ok
}
