package engine

import (
	"regexp"
	"strings"
)

// CommandKind is the tagged variant of a normalized inbound command.
// Parsing happens once at the engine boundary so transition logic never
// compares raw transport text.
type CommandKind int

const (
	// CmdText is free-form text that matched no listed command.
	CmdText CommandKind = iota
	// CmdPlaceOrder starts the ordering flow.
	CmdPlaceOrder
	// CmdOrderInfo requests the latest order summary.
	CmdOrderInfo
	// CmdContactAdmin opens the admin dialog.
	CmdContactAdmin
	// CmdHelp requests the static menu text.
	CmdHelp
	// CmdCancel aborts the current sub-flow.
	CmdCancel
	// CmdChangeOrder asks to amend order data or size.
	CmdChangeOrder
	// CmdDelayed reports a shipment older than two months.
	CmdDelayed
	// CmdReturn starts the return flow.
	CmdReturn
	// CmdBackToMenu leaves the current dialog.
	CmdBackToMenu
	// CmdQuote requests a market quote for $SYMBOL.
	CmdQuote
	// CmdProductLink is a message carrying a market product link or attachment.
	CmdProductLink
)

// Command is the normalized form of an inbound event.
type Command struct {
	Kind CommandKind
	// Text preserves the original (untrimmed-case) message body.
	Text string
	// Symbol holds the ticker for CmdQuote, lowercased without the '$'.
	Symbol string
}

// AttachmentMarket is the attachment type that marks a shop product card.
const AttachmentMarket = "market"

var productLinkRe = regexp.MustCompile(`https?://vk\.com/market/product/\d+-\d+-\d+`)

var commandKinds = map[string]CommandKind{
	"оформить заказ":                  CmdPlaceOrder,
	"инфо о заказе":                   CmdOrderInfo,
	"связаться с админом":             CmdContactAdmin,
	"помощь":                          CmdHelp,
	"отмена":                          CmdCancel,
	"смена данных/размера":            CmdChangeOrder,
	"нет, отправил больше 2-х месяцев": CmdDelayed,
	"возврат":                         CmdReturn,
	"вернуться в меню":                CmdBackToMenu,
}

// ParseCommand normalizes an inbound event into a Command.
// Quote requests win over everything; listed commands are matched by
// exact lowercase text; product links are recognized in the text or as
// a market attachment; anything else is free text.
func ParseCommand(text string, attachments []Attachment) Command {
	full := strings.TrimSpace(text)
	lower := strings.ToLower(full)

	if strings.HasPrefix(full, "$") && len(full) > 1 {
		return Command{Kind: CmdQuote, Text: full, Symbol: strings.ToLower(full[1:])}
	}
	if kind, ok := commandKinds[lower]; ok {
		return Command{Kind: kind, Text: full}
	}
	if productLinkRe.MatchString(full) || hasMarketAttachment(attachments) {
		return Command{Kind: CmdProductLink, Text: full}
	}
	return Command{Kind: CmdText, Text: full}
}

func hasMarketAttachment(attachments []Attachment) bool {
	for _, a := range attachments {
		if a.Type == AttachmentMarket {
			return true
		}
	}
	return false
}
