package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/ledger"
	"github.com/escapismart/shopbot/shop/model"
	"github.com/escapismart/shopbot/shop/store"
)

type sentReply struct {
	userID int64
	reply  engine.Reply
}

// captureSender records outbound replies and lets tests await delivery.
type captureSender struct {
	ch chan sentReply
}

func newCaptureSender() *captureSender {
	return &captureSender{ch: make(chan sentReply, 64)}
}

func (c *captureSender) Send(_ context.Context, userID int64, reply engine.Reply) error {
	c.ch <- sentReply{userID: userID, reply: reply}
	return nil
}

func (c *captureSender) await(t *testing.T) sentReply {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound reply")
		return sentReply{}
	}
}

// flakyStore injects a state-write failure around the real in-memory store.
type flakyStore struct {
	*store.Memory
	mu      sync.Mutex
	setErr  error
	setSeen int
}

func (f *flakyStore) Set(ctx context.Context, userID int64, state engine.State) error {
	f.mu.Lock()
	err := f.setErr
	f.setErr = nil
	f.setSeen++
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Set(ctx, userID, state)
}

func newTestDispatcher(t *testing.T, st StateStore, led engine.Ledger, sender Sender) *Dispatcher {
	t.Helper()
	d := New(st, engine.New(led, nil), sender, Options{Workers: 2, QueueSize: 8})
	t.Cleanup(d.Close)
	return d
}

func TestDispatcherOrderFlow(t *testing.T) {
	st := store.NewMemory()
	led := ledger.NewMemory()
	sender := newCaptureSender()
	d := newTestDispatcher(t, st, led, sender)

	ctx := context.Background()
	const userID int64 = 101

	require.NoError(t, d.Process(ctx, engine.Event{
		UserID: userID,
		Text:   "глянь https://vk.com/market/product/123-456001-789",
	}))
	got := sender.await(t)
	require.Equal(t, userID, got.userID)
	require.NotEmpty(t, got.reply.Text)

	state, err := st.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateOrdering, state)

	require.NoError(t, d.Process(ctx, engine.Event{
		UserID: userID,
		Text:   "Футболка чёрная, размер M, Иванов, Москва",
	}))
	got = sender.await(t)
	require.Contains(t, got.reply.Text, "1")

	state, err = st.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateOrderConfirmed, state)

	order, err := led.Latest(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, order.Status)
	require.Contains(t, order.Data, "размер M")
}

func TestDispatcherPersistsDefaultStateForNewUser(t *testing.T) {
	st := store.NewMemory()
	sender := newCaptureSender()
	d := newTestDispatcher(t, st, ledger.NewMemory(), sender)

	ctx := context.Background()
	const userID int64 = 202

	_, err := st.Get(ctx, userID)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, d.Process(ctx, engine.Event{UserID: userID, Text: "помощь"}))
	sender.await(t)

	state, err := st.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateNew, state)
}

func TestDispatcherStateWriteFailureDoesNotAdvance(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory()}
	sender := newCaptureSender()
	d := newTestDispatcher(t, fs, ledger.NewMemory(), sender)

	ctx := context.Background()
	const userID int64 = 303
	require.NoError(t, fs.Memory.Set(ctx, userID, engine.StateNew))

	fs.mu.Lock()
	fs.setErr = errors.New("connection reset")
	fs.mu.Unlock()

	require.NoError(t, d.Process(ctx, engine.Event{UserID: userID, Text: "оформить заказ"}))
	got := sender.await(t)
	require.Equal(t, engine.RetryReply(), got.reply)

	state, err := fs.Memory.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateNew, state)

	// The same input succeeds once the store recovers.
	require.NoError(t, d.Process(ctx, engine.Event{UserID: userID, Text: "оформить заказ"}))
	sender.await(t)
	state, err = fs.Memory.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateOrdering, state)
}

func TestDispatcherOrderCreateFailureKeepsOrdering(t *testing.T) {
	st := store.NewMemory()
	led := ledger.NewMemory()
	sender := newCaptureSender()
	d := newTestDispatcher(t, st, led, sender)

	ctx := context.Background()
	const userID int64 = 404
	require.NoError(t, st.Set(ctx, userID, engine.StateOrdering))

	led.FailNext = errors.New("deadline exceeded")
	require.NoError(t, d.Process(ctx, engine.Event{UserID: userID, Text: "Кроссовки 42"}))
	got := sender.await(t)
	require.Equal(t, engine.RetryReply().Text, got.reply.Text)

	state, err := st.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, engine.StateOrdering, state)

	_, err = led.Latest(ctx, userID)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, d.Process(ctx, engine.Event{UserID: userID, Text: "Кроссовки 42"}))
	sender.await(t)
	order, err := led.Latest(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "Кроссовки 42", order.Data)
}

// serializingHandler fails the test if two events for one user overlap.
type serializingHandler struct {
	mu       sync.Mutex
	inFlight map[int64]bool
	overlap  bool
	handled  int
}

func (h *serializingHandler) Handle(_ context.Context, ev engine.Event, current engine.State) (engine.Outcome, error) {
	h.mu.Lock()
	if h.inFlight[ev.UserID] {
		h.overlap = true
	}
	h.inFlight[ev.UserID] = true
	h.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	h.mu.Lock()
	h.inFlight[ev.UserID] = false
	h.handled++
	h.mu.Unlock()

	return engine.Outcome{Next: current, Reply: engine.Reply{Text: "ok"}}, nil
}

func TestDispatcherSerializesEventsPerUser(t *testing.T) {
	h := &serializingHandler{inFlight: make(map[int64]bool)}
	sender := newCaptureSender()
	d := New(store.NewMemory(), h, sender, Options{Workers: 4, QueueSize: 8})

	ctx := context.Background()
	const users, perUser = 6, 5
	for i := 0; i < perUser; i++ {
		for u := 0; u < users; u++ {
			require.NoError(t, d.Process(ctx, engine.Event{
				UserID: int64(u + 1),
				Text:   fmt.Sprintf("msg %d", i),
			}))
		}
	}
	d.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.False(t, h.overlap, "events for a single user must not overlap")
	require.Equal(t, users*perUser, h.handled)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := New(store.NewMemory(), engine.New(ledger.NewMemory(), nil), nil, Options{})
	d.Close()

	err := d.Process(context.Background(), engine.Event{UserID: 1, Text: "помощь"})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	h := &panicHandler{}
	sender := newCaptureSender()
	d := New(store.NewMemory(), h, sender, Options{Workers: 1, QueueSize: 4})
	t.Cleanup(d.Close)

	ctx := context.Background()
	require.NoError(t, d.Process(ctx, engine.Event{UserID: 1, Text: "boom"}))
	require.NoError(t, d.Process(ctx, engine.Event{UserID: 1, Text: "после"}))

	got := sender.await(t)
	require.Equal(t, "ok", got.reply.Text)
}

type panicHandler struct {
	fired bool
}

func (h *panicHandler) Handle(_ context.Context, _ engine.Event, current engine.State) (engine.Outcome, error) {
	if !h.fired {
		h.fired = true
		panic("handler bug")
	}
	return engine.Outcome{Next: current, Reply: engine.Reply{Text: "ok"}}, nil
}
