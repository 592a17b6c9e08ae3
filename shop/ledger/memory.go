package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/escapismart/shopbot/shop/model"
)

// Memory is a mutex-guarded in-memory ledger for tests and local
// development. Ids are assigned monotonically like the database serial.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*model.Order
	notes  map[int64][]model.OrderNote

	// FailNext makes the next mutating call fail, for failure-path tests.
	FailNext error
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		orders: make(map[int64]*model.Order),
		notes:  make(map[int64][]model.OrderNote),
	}
}

func (m *Memory) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// Create inserts a new order and returns its assigned id.
func (m *Memory) Create(_ context.Context, userID int64, data string, status model.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	id := m.nextID
	m.nextID++
	now := time.Now()
	m.orders[id] = &model.Order{
		ID:        id,
		UserID:    userID,
		Data:      data,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

// UpdateStatus sets the status of an existing order.
func (m *Memory) UpdateStatus(_ context.Context, orderID int64, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

// UpdateData replaces the payload of an existing order.
func (m *Memory) UpdateData(_ context.Context, orderID int64, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	order.Data = data
	order.UpdatedAt = time.Now()
	return nil
}

// Latest returns the most recently created order of the user.
func (m *Memory) Latest(_ context.Context, userID int64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *model.Order
	for _, order := range m.orders {
		if order.UserID != userID {
			continue
		}
		if latest == nil || order.CreatedAt.After(latest.CreatedAt) ||
			(order.CreatedAt.Equal(latest.CreatedAt) && order.ID > latest.ID) {
			latest = order
		}
	}
	if latest == nil {
		return model.Order{}, model.ErrNotFound
	}
	return *latest, nil
}

// AddNote appends a note to an order.
func (m *Memory) AddNote(_ context.Context, orderID int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.orders[orderID]; !ok {
		return fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	m.notes[orderID] = append(m.notes[orderID], model.OrderNote{
		ID:        int64(len(m.notes[orderID]) + 1),
		OrderID:   orderID,
		Note:      note,
		CreatedAt: time.Now(),
	})
	return nil
}

// CountByStatus reports how many orders currently carry the status.
func (m *Memory) CountByStatus(_ context.Context, status model.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, order := range m.orders {
		if order.Status == status {
			n++
		}
	}
	return n, nil
}

// Notes returns the notes recorded for an order, for tests.
func (m *Memory) Notes(orderID int64) []model.OrderNote {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.OrderNote, len(m.notes[orderID]))
	copy(out, m.notes[orderID])
	return out
}

// Get returns a snapshot of an order by id, for tests.
func (m *Memory) Get(orderID int64) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return *order, true
}
