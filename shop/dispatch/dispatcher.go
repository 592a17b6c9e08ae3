// Package dispatch routes one inbound event through state load,
// engine decision, persistence, and a single outbound reply.
//
// Events are sharded by user id onto a fixed worker, which serializes
// every read-modify-write for a given user while different users
// proceed in parallel. Bounded queues apply backpressure to the
// transport instead of dropping events.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/model"
)

// ErrQueueClosed is returned when enqueue is attempted after Close.
var ErrQueueClosed = errors.New("dispatch: queue closed")

// StateStore is the persistence contract for conversation state.
type StateStore interface {
	Get(ctx context.Context, userID int64) (engine.State, error)
	Set(ctx context.Context, userID int64, state engine.State) error
}

// Handler decides the next state and reply for an event.
type Handler interface {
	Handle(ctx context.Context, ev engine.Event, current engine.State) (engine.Outcome, error)
}

// Sender delivers the outbound reply to the user.
type Sender interface {
	Send(ctx context.Context, userID int64, reply engine.Reply) error
}

// Options controls the worker pool.
type Options struct {
	Workers   int
	QueueSize int
}

type job struct {
	ctx context.Context
	ev  engine.Event
}

// Dispatcher is the single-writer-per-user event pipeline.
type Dispatcher struct {
	store  StateStore
	engine Handler
	sender Sender

	shards []chan job
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New starts a dispatcher with sane defaults if options are zeroed.
func New(store StateStore, eng Handler, sender Sender, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	d := &Dispatcher{
		store:  store,
		engine: eng,
		sender: sender,
		shards: make([]chan job, opts.Workers),
		stop:   make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

// Process enqueues one inbound event. It blocks when the user's shard
// is saturated, and returns early on ctx cancellation or Close.
func (d *Dispatcher) Process(ctx context.Context, ev engine.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	shard := d.shards[int(uint64(ev.UserID)%uint64(len(d.shards)))]
	select {
	case shard <- job{ctx: ctx, ev: ev}:
		return nil
	case <-d.stop:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		for _, shard := range d.shards {
			close(shard)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(shard chan job) {
	defer d.wg.Done()
	for j := range shard {
		d.handle(j)
	}
}

// handle isolates one event end to end: a panic or failure here must
// never take the loop down with it.
func (d *Dispatcher) handle(j job) {
	ctx := j.ctx
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, uuid.NewString())
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "dispatch", "event.panic",
				slog.Int64("user_id", j.ev.UserID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	current, ok := d.loadState(ctx, j.ev.UserID)
	if !ok {
		d.send(ctx, j.ev.UserID, engine.RetryReply())
		return
	}

	outcome, engErr := d.engine.Handle(ctx, j.ev, current)
	reply := outcome.Reply

	if outcome.Next != current {
		if err := d.store.Set(ctx, j.ev.UserID, outcome.Next); err != nil {
			logger.Error(ctx, "dispatch", "state.persist",
				slog.String("status", "fail"),
				slog.Int64("user_id", j.ev.UserID),
				slog.String("state", string(current)),
				slog.String("next_state", string(outcome.Next)),
				slog.String("err", err.Error()),
			)
			// Not advanced; the user retries by resubmitting the same input.
			reply = engine.RetryReply()
		}
	}

	d.send(ctx, j.ev.UserID, reply)

	logger.Debug(ctx, "dispatch", "event.handled",
		slog.String("status", logger.Status(engErr)),
		slog.Int64("user_id", j.ev.UserID),
		slog.String("state", string(current)),
		slog.String("next_state", string(outcome.Next)),
		slog.Duration("duration", logger.Took(start)),
	)
}

// loadState resolves the user's current state, persisting the default
// for first-time users. The second return is false only on a real
// persistence failure while reading.
func (d *Dispatcher) loadState(ctx context.Context, userID int64) (engine.State, bool) {
	current, err := d.store.Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		current = engine.StateNew
		if setErr := d.store.Set(ctx, userID, current); setErr != nil {
			// Degrade to the in-memory default; the next successful
			// write establishes the record.
			logger.Warn(ctx, "dispatch", "state.default",
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
				slog.String("err", setErr.Error()),
			)
		}
		return current, true
	}
	if err != nil {
		logger.Error(ctx, "dispatch", "state.load",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return "", false
	}
	return current, true
}

func (d *Dispatcher) send(ctx context.Context, userID int64, reply engine.Reply) {
	if reply.Text == "" || d.sender == nil {
		return
	}
	if err := d.sender.Send(ctx, userID, reply); err != nil {
		logger.Error(ctx, "dispatch", "reply.send",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}
