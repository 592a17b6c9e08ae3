package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		attachments []Attachment
		wantKind    CommandKind
		wantSymbol  string
	}{
		{name: "place order", text: "Оформить заказ", wantKind: CmdPlaceOrder},
		{name: "place order lowercase", text: "оформить заказ", wantKind: CmdPlaceOrder},
		{name: "order info", text: "Инфо о заказе", wantKind: CmdOrderInfo},
		{name: "contact admin", text: "Связаться с админом", wantKind: CmdContactAdmin},
		{name: "help", text: "Помощь", wantKind: CmdHelp},
		{name: "cancel", text: "Отмена", wantKind: CmdCancel},
		{name: "change order", text: "Смена данных/размера", wantKind: CmdChangeOrder},
		{name: "delayed", text: "Нет, отправил больше 2-х месяцев", wantKind: CmdDelayed},
		{name: "return", text: "Возврат", wantKind: CmdReturn},
		{name: "back to menu", text: "Вернуться в меню", wantKind: CmdBackToMenu},
		{name: "quote", text: "$INJ", wantKind: CmdQuote, wantSymbol: "inj"},
		{name: "quote trims spaces", text: "  $btc  ", wantKind: CmdQuote, wantSymbol: "btc"},
		{name: "bare dollar is text", text: "$", wantKind: CmdText},
		{name: "product link", text: "https://vk.com/market/product/123-456-789", wantKind: CmdProductLink},
		{name: "product link in sentence", text: "глянь http://vk.com/market/product/1-2-3 пожалуйста", wantKind: CmdProductLink},
		{name: "market attachment", text: "вот товар", attachments: []Attachment{{Type: AttachmentMarket}}, wantKind: CmdProductLink},
		{name: "photo attachment is text", text: "вот фото", attachments: []Attachment{{Type: "photo"}}, wantKind: CmdText},
		{name: "free text", text: "привет", wantKind: CmdText},
		{name: "empty", text: "", wantKind: CmdText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := ParseCommand(tc.text, tc.attachments)
			assert.Equal(t, tc.wantKind, cmd.Kind)
			assert.Equal(t, tc.wantSymbol, cmd.Symbol)
		})
	}
}

func TestParseCommandKeepsOriginalText(t *testing.T) {
	cmd := ParseCommand("  Футболка, размер M  ", nil)
	assert.Equal(t, CmdText, cmd.Kind)
	assert.Equal(t, "Футболка, размер M", cmd.Text)
}

func TestParseState(t *testing.T) {
	for _, s := range []State{StateNew, StateOrdering, StateOrderConfirmed, StateChangeOrder, StateReturnOrder, StateAdminDialog} {
		assert.Equal(t, s, ParseState(string(s)))
	}
	assert.Equal(t, StateNew, ParseState(""))
	assert.Equal(t, StateNew, ParseState("legacy_value"))
}
