// Package engine implements the conversation state machine that drives
// users through the order lifecycle: create, confirm, modify, return,
// escalate to a human.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/shop/model"
)

// Event is one inbound message as seen by the engine.
type Event struct {
	UserID      int64
	Text        string
	Attachments []Attachment
}

// Attachment describes an inbound attachment by its transport type.
type Attachment struct {
	Type string
}

// Keyboard names the button set that should accompany a reply.
// Rendering is the transport's concern.
type Keyboard int

const (
	// KeyboardNone sends the reply without buttons.
	KeyboardNone Keyboard = iota
	// KeyboardMain shows the main menu.
	KeyboardMain
	// KeyboardOrderManage shows the order-management menu.
	KeyboardOrderManage
	// KeyboardCancel shows a lone cancel button.
	KeyboardCancel
	// KeyboardAdmin shows the back-to-menu button of the admin dialog.
	KeyboardAdmin
)

// Reply is the single outbound response produced for an event.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Outcome carries the next conversation state and the reply to deliver.
type Outcome struct {
	Next  State
	Reply Reply
}

// Ledger persists orders and their notes.
type Ledger interface {
	Create(ctx context.Context, userID int64, data string, status model.Status) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.Status) error
	UpdateData(ctx context.Context, orderID int64, data string) error
	Latest(ctx context.Context, userID int64) (model.Order, error)
	AddNote(ctx context.Context, orderID int64, note string) error
}

// QuoteProvider answers $SYMBOL requests. The engine delegates entirely
// and treats any failure as an upstream error.
type QuoteProvider interface {
	Summary(ctx context.Context, symbol string) (string, error)
}

// Engine decides, for an incoming event and the current state, the next
// state and the outbound reply. Order mutations happen here; the state
// write itself belongs to the caller so a failed write can degrade
// without advancing the conversation.
type Engine struct {
	ledger Ledger
	quotes QuoteProvider
}

// New constructs an Engine.
func New(ledger Ledger, quotes QuoteProvider) *Engine {
	return &Engine{ledger: ledger, quotes: quotes}
}

// Handle runs one event through the transition table.
//
// The returned error reports a persistence or upstream failure that was
// already translated into the reply; the Outcome is valid either way
// and keeps the state unchanged on failure so resubmitting the same
// input retries the action.
func (e *Engine) Handle(ctx context.Context, ev Event, current State) (Outcome, error) {
	cmd := ParseCommand(ev.Text, ev.Attachments)

	out, err := e.dispatch(ctx, ev, current, cmd)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("state", string(current)),
		slog.String("next_state", string(out.Next)),
		slog.String("cmd", cmd.Kind.String()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Error(ctx, "engine", "transition", attrs...)
	} else {
		logger.Debug(ctx, "engine", "transition", attrs...)
	}
	return out, err
}

func (e *Engine) dispatch(ctx context.Context, ev Event, current State, cmd Command) (Outcome, error) {
	// Quote requests bypass the state machine entirely.
	if cmd.Kind == CmdQuote {
		return e.handleQuote(ctx, current, cmd)
	}

	switch current {
	case StateOrdering:
		return e.handleOrdering(ctx, ev, cmd)
	case StateAdminDialog:
		return e.handleAdminDialog(cmd)
	case StateChangeOrder:
		return e.handleChangeOrder(ctx, ev, cmd)
	case StateReturnOrder:
		return e.handleReturnOrder(ctx, ev, cmd)
	case StateOrderConfirmed:
		if out, handled, err := e.handleOrderConfirmed(ctx, ev, cmd); handled {
			return out, err
		}
	}

	return e.handleMenu(ctx, ev, current, cmd)
}

func (e *Engine) handleQuote(ctx context.Context, current State, cmd Command) (Outcome, error) {
	stay := Outcome{Next: current}
	if e.quotes == nil {
		stay.Reply = Reply{Text: msgFallback, Keyboard: KeyboardMain}
		return stay, nil
	}
	text, err := e.quotes.Summary(ctx, cmd.Symbol)
	if err != nil {
		stay.Reply = Reply{Text: msgQuoteFailed(strings.ToUpper(cmd.Symbol), err)}
		return stay, fmt.Errorf("quote %s: %w", cmd.Symbol, err)
	}
	stay.Reply = Reply{Text: text}
	return stay, nil
}

// isGlobal reports whether the command keeps its meaning inside the
// order sub-flows instead of being consumed as free-form payload.
func isGlobal(kind CommandKind) bool {
	switch kind {
	case CmdContactAdmin, CmdOrderInfo, CmdHelp:
		return true
	}
	return false
}

func (e *Engine) handleOrdering(ctx context.Context, ev Event, cmd Command) (Outcome, error) {
	if cmd.Kind == CmdCancel {
		return Outcome{
			Next:  StateNew,
			Reply: Reply{Text: msgOrderCancelled, Keyboard: KeyboardMain},
		}, nil
	}
	if isGlobal(cmd.Kind) {
		return e.handleMenu(ctx, ev, StateOrdering, cmd)
	}

	orderID, err := e.ledger.Create(ctx, ev.UserID, cmd.Text, model.StatusConfirmed)
	if err != nil {
		return retryOutcome(StateOrdering, KeyboardCancel), fmt.Errorf("create order: %w", err)
	}
	return Outcome{
		Next:  StateOrderConfirmed,
		Reply: Reply{Text: msgOrderAccepted(orderID, cmd.Text), Keyboard: KeyboardOrderManage},
	}, nil
}

func (e *Engine) handleAdminDialog(cmd Command) (Outcome, error) {
	if cmd.Kind == CmdBackToMenu {
		return Outcome{
			Next:  StateNew,
			Reply: Reply{Text: msgBackToMenu, Keyboard: KeyboardMain},
		}, nil
	}
	// Any other text is acknowledged; nothing is persisted.
	return Outcome{
		Next:  StateAdminDialog,
		Reply: Reply{Text: msgAdminForwarded, Keyboard: KeyboardAdmin},
	}, nil
}

func (e *Engine) handleChangeOrder(ctx context.Context, ev Event, cmd Command) (Outcome, error) {
	if cmd.Kind == CmdCancel {
		return Outcome{
			Next:  StateOrderConfirmed,
			Reply: Reply{Text: msgOperationCancelled, Keyboard: KeyboardOrderManage},
		}, nil
	}
	if isGlobal(cmd.Kind) {
		return e.handleMenu(ctx, ev, StateChangeOrder, cmd)
	}

	order, err := e.ledger.Latest(ctx, ev.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return orderNotFoundOutcome(), nil
	}
	if err != nil {
		return retryOutcome(StateChangeOrder, KeyboardCancel), fmt.Errorf("load latest order: %w", err)
	}

	if err := e.ledger.UpdateData(ctx, order.ID, cmd.Text); err != nil {
		return retryOutcome(StateChangeOrder, KeyboardCancel), fmt.Errorf("update order %d data: %w", order.ID, err)
	}
	if err := e.ledger.UpdateStatus(ctx, order.ID, model.StatusUpdated); err != nil {
		return retryOutcome(StateChangeOrder, KeyboardCancel), fmt.Errorf("update order %d status: %w", order.ID, err)
	}
	return Outcome{
		Next:  StateOrderConfirmed,
		Reply: Reply{Text: msgOrderUpdated(cmd.Text), Keyboard: KeyboardOrderManage},
	}, nil
}

func (e *Engine) handleReturnOrder(ctx context.Context, ev Event, cmd Command) (Outcome, error) {
	if cmd.Kind == CmdCancel {
		return Outcome{
			Next:  StateOrderConfirmed,
			Reply: Reply{Text: msgOperationCancelled, Keyboard: KeyboardOrderManage},
		}, nil
	}
	if isGlobal(cmd.Kind) {
		return e.handleMenu(ctx, ev, StateReturnOrder, cmd)
	}

	order, err := e.ledger.Latest(ctx, ev.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return orderNotFoundOutcome(), nil
	}
	if err != nil {
		return retryOutcome(StateReturnOrder, KeyboardCancel), fmt.Errorf("load latest order: %w", err)
	}

	if err := e.ledger.UpdateStatus(ctx, order.ID, model.StatusReturnRequested); err != nil {
		return retryOutcome(StateReturnOrder, KeyboardCancel), fmt.Errorf("update order %d status: %w", order.ID, err)
	}
	if err := e.ledger.AddNote(ctx, order.ID, returnNotePrefix+cmd.Text); err != nil {
		return retryOutcome(StateReturnOrder, KeyboardCancel), fmt.Errorf("add note to order %d: %w", order.ID, err)
	}
	return Outcome{
		Next:  StateOrderConfirmed,
		Reply: Reply{Text: msgReturnRegistered, Keyboard: KeyboardOrderManage},
	}, nil
}

// handleOrderConfirmed covers the order-management menu. Unmatched input
// falls through to the main-menu handling, so product links and the
// global commands keep working from this state.
func (e *Engine) handleOrderConfirmed(ctx context.Context, ev Event, cmd Command) (Outcome, bool, error) {
	switch cmd.Kind {
	case CmdChangeOrder:
		return Outcome{
			Next:  StateChangeOrder,
			Reply: Reply{Text: msgChangePrompt, Keyboard: KeyboardCancel},
		}, true, nil

	case CmdDelayed:
		order, err := e.ledger.Latest(ctx, ev.UserID)
		if errors.Is(err, model.ErrNotFound) {
			return orderNotFoundOutcome(), true, nil
		}
		if err != nil {
			return retryOutcome(StateOrderConfirmed, KeyboardOrderManage), true, fmt.Errorf("load latest order: %w", err)
		}
		if err := e.ledger.UpdateStatus(ctx, order.ID, model.StatusDelayed); err != nil {
			return retryOutcome(StateOrderConfirmed, KeyboardOrderManage), true, fmt.Errorf("update order %d status: %w", order.ID, err)
		}
		return Outcome{
			Next:  StateOrderConfirmed,
			Reply: Reply{Text: msgDelayedMarked, Keyboard: KeyboardOrderManage},
		}, true, nil

	case CmdReturn:
		return Outcome{
			Next:  StateReturnOrder,
			Reply: Reply{Text: msgReturnPrompt, Keyboard: KeyboardCancel},
		}, true, nil

	case CmdBackToMenu:
		return Outcome{
			Next:  StateOrderConfirmed,
			Reply: Reply{Text: msgBackToMenu, Keyboard: KeyboardOrderManage},
		}, true, nil
	}

	return Outcome{}, false, nil
}

// handleMenu covers the main menu shared by StateNew and any state that
// fell through its own handling.
func (e *Engine) handleMenu(ctx context.Context, ev Event, current State, cmd Command) (Outcome, error) {
	switch cmd.Kind {
	case CmdProductLink:
		return Outcome{
			Next:  StateOrdering,
			Reply: Reply{Text: msgProductLinkDetected, Keyboard: KeyboardCancel},
		}, nil

	case CmdPlaceOrder:
		return Outcome{
			Next:  StateOrdering,
			Reply: Reply{Text: msgOrderPrompt, Keyboard: KeyboardCancel},
		}, nil

	case CmdOrderInfo:
		order, err := e.ledger.Latest(ctx, ev.UserID)
		if errors.Is(err, model.ErrNotFound) {
			return Outcome{
				Next:  current,
				Reply: Reply{Text: msgNoOrderYet, Keyboard: KeyboardMain},
			}, nil
		}
		if err != nil {
			return retryOutcome(current, KeyboardMain), fmt.Errorf("load latest order: %w", err)
		}
		return Outcome{
			Next:  current,
			Reply: Reply{Text: msgOrderInfo(order.ID, order.Data, string(order.Status)), Keyboard: KeyboardOrderManage},
		}, nil

	case CmdContactAdmin:
		return Outcome{
			Next:  StateAdminDialog,
			Reply: Reply{Text: msgAdminPrompt, Keyboard: KeyboardAdmin},
		}, nil

	case CmdHelp:
		return Outcome{
			Next:  current,
			Reply: Reply{Text: msgHelp, Keyboard: KeyboardMain},
		}, nil
	}

	return Outcome{
		Next:  current,
		Reply: Reply{Text: msgFallback, Keyboard: KeyboardMain},
	}, nil
}

// RetryReply is the generic "try again later" reply, for callers that
// hit a failure outside the engine and have no flow-specific keyboard.
func RetryReply() Reply {
	return Reply{Text: msgTryAgainLater, Keyboard: KeyboardMain}
}

func retryOutcome(stay State, kb Keyboard) Outcome {
	return Outcome{
		Next:  stay,
		Reply: Reply{Text: msgTryAgainLater, Keyboard: kb},
	}
}

// orderNotFoundOutcome keeps the user in the order-management menu with
// the main keyboard visible, so the corrective action (placing a new
// order) is one tap away instead of leaving the flow stuck.
func orderNotFoundOutcome() Outcome {
	return Outcome{
		Next:  StateOrderConfirmed,
		Reply: Reply{Text: msgOrderNotFound, Keyboard: KeyboardMain},
	}
}

// String returns the log-friendly name of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CmdPlaceOrder:
		return "place_order"
	case CmdOrderInfo:
		return "order_info"
	case CmdContactAdmin:
		return "contact_admin"
	case CmdHelp:
		return "help"
	case CmdCancel:
		return "cancel"
	case CmdChangeOrder:
		return "change_order"
	case CmdDelayed:
		return "delayed"
	case CmdReturn:
		return "return"
	case CmdBackToMenu:
		return "back_to_menu"
	case CmdQuote:
		return "quote"
	case CmdProductLink:
		return "product_link"
	default:
		return "text"
	}
}
