package engine

// State identifies the stage of a user's conversation with the bot.
type State string

const (
	// StateNew is the main-menu state for first-time users and users
	// without an active flow.
	StateNew State = "new"
	// StateOrdering means the bot is waiting for order details.
	StateOrdering State = "ordering"
	// StateOrderConfirmed means the user has an accepted order and sees
	// the order-management menu.
	StateOrderConfirmed State = "order_confirmed"
	// StateChangeOrder means the bot is waiting for replacement order data.
	StateChangeOrder State = "change_order"
	// StateReturnOrder means the bot is waiting for a return reason.
	StateReturnOrder State = "return_order"
	// StateAdminDialog means user messages are being forwarded to the admin.
	StateAdminDialog State = "admin_dialog"
)

var knownStates = map[State]struct{}{
	StateNew:            {},
	StateOrdering:       {},
	StateOrderConfirmed: {},
	StateChangeOrder:    {},
	StateReturnOrder:    {},
	StateAdminDialog:    {},
}

// ParseState maps a persisted state value onto a known State.
// Unrecognized values fall back to StateNew so a corrupted or legacy
// record can never strand a user outside the state machine.
func ParseState(raw string) State {
	s := State(raw)
	if _, ok := knownStates[s]; ok {
		return s
	}
	return StateNew
}
