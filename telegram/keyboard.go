package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/escapismart/shopbot/shop/engine"
)

// Button labels of the main menu.
const (
	btnPlaceOrder   = "Оформить заказ"
	btnOrderInfo    = "Инфо о заказе"
	btnContactAdmin = "Связаться с админом"
	btnHelp         = "Помощь"
)

// Button labels of the order-management and sub-flow menus.
const (
	btnChangeOrder = "Смена данных/размера"
	btnDelayed     = "Нет, отправил больше 2-х месяцев"
	btnReturn      = "Возврат"
	btnBackToMenu  = "Вернуться в меню"
	btnCancel      = "Отмена"
)

// Markup renders a keyboard descriptor into a Telegram reply markup.
// KeyboardNone maps to nil, which sends the message without buttons.
func Markup(kb engine.Keyboard) *tele.ReplyMarkup {
	switch kb {
	case engine.KeyboardMain:
		return replyButtons(false,
			[]string{btnPlaceOrder, btnOrderInfo},
			[]string{btnContactAdmin},
			[]string{btnHelp},
		)
	case engine.KeyboardOrderManage:
		return replyButtons(false,
			[]string{btnOrderInfo},
			[]string{btnChangeOrder, btnDelayed},
			[]string{btnReturn},
			[]string{btnBackToMenu},
		)
	case engine.KeyboardCancel:
		return replyButtons(true, []string{btnCancel})
	case engine.KeyboardAdmin:
		return replyButtons(true, []string{btnBackToMenu})
	}
	return nil
}

// replyButtons builds a reply keyboard from rows of text.
func replyButtons(oneTime bool, rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: oneTime}
	var keyboard []tele.Row
	for _, row := range rows {
		var buttons []tele.Btn
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}
