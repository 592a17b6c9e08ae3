package telegram

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/shop/engine"
)

// BotSender delivers engine replies through the Telegram API.
type BotSender struct {
	bot *tele.Bot
}

// NewBotSender wraps a bot as an outbound sender.
func NewBotSender(bot *tele.Bot) *BotSender {
	return &BotSender{bot: bot}
}

// Send delivers one reply to the user, rendering its keyboard descriptor.
func (s *BotSender) Send(ctx context.Context, userID int64, reply engine.Reply) error {
	recipient := &tele.User{ID: userID}

	var opts []interface{}
	if markup := Markup(reply.Keyboard); markup != nil {
		opts = append(opts, markup)
	}

	start := time.Now()
	_, err := s.bot.Send(recipient, reply.Text, opts...)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", userID),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Error(ctx, "tg", "message.send", attrs...)
		return fmt.Errorf("send message to %d: %w", userID, err)
	}
	logger.Debug(ctx, "tg", "message.send", attrs...)
	return nil
}
