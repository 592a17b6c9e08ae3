// Package telegram adapts the conversation pipeline to the Telegram
// Bot API: inbound updates become engine events, engine replies go back
// through the bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/escapismart/shopbot/core/config"
	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/shop/dispatch"
	"github.com/escapismart/shopbot/shop/engine"
)

// Options controls the behaviour of Run.
type Options struct {
	Config *coreconfig.Config

	// Store and Engine feed the dispatcher built inside Run; the
	// outbound sender is the bot itself.
	Store  dispatch.StateStore
	Engine dispatch.Handler

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Sender     *BotSender
	Dispatcher *dispatch.Dispatcher
}

// Run composes and runs the bot until the provided context is done.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Store == nil || opts.Engine == nil {
		return fmt.Errorf("telegram: store and engine are required")
	}

	cfg := opts.Config

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	sender := NewBotSender(bot)
	dispatcher := dispatch.New(opts.Store, opts.Engine, sender, dispatch.Options{
		Workers:   cfg.Dispatcher.Workers,
		QueueSize: cfg.Dispatcher.QueueSize,
	})

	rt := Runtime{
		Bot:        bot,
		Sender:     sender,
		Dispatcher: dispatcher,
	}

	// Log adapter configuration (INFO aggregates only)
	switch p := poller.(type) {
	case *tele.Webhook:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	default:
		timeoutSec := 10
		if cfg.Telegram.LongPollTimeoutSeconds > 0 {
			timeoutSec = cfg.Telegram.LongPollTimeoutSeconds
		}
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Int("timeout_seconds", timeoutSec),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)

		if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			if err := deleteWebhook(cfg.Telegram.Token, false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					slog.String("mode", "polling"),
					slog.String("err", err.Error()),
				)
			} else {
				logger.TG.Info("webhook deleted",
					slog.String("event", "delete_webhook"),
					slog.String("mode", "polling"),
				)
			}
		}
	}

	bot.Use(RecoverMiddleware, ReceiptMiddleware)
	if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
		bot.Use(RateLimitMiddleware(RateLimitOptions{Interval: interval}))
	}

	inbound := &inboundRoutes{dispatcher: dispatcher}
	bot.Handle(tele.OnText, inbound.onMessage)
	bot.Handle(tele.OnPhoto, inbound.onMessage)
	bot.Handle(tele.OnDocument, inbound.onMessage)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.Background(), rt)
	}

	dispatcher.Close()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// inboundRoutes converts updates into engine events.
type inboundRoutes struct {
	dispatcher *dispatch.Dispatcher
}

func (r *inboundRoutes) onMessage(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := loadContext(c)

	ev := engine.Event{UserID: user.ID, Text: c.Text()}
	if msg := c.Message(); msg != nil {
		if ev.Text == "" {
			ev.Text = msg.Caption
		}
		if msg.Photo != nil {
			ev.Attachments = append(ev.Attachments, engine.Attachment{Type: "photo"})
		}
		if msg.Document != nil {
			ev.Attachments = append(ev.Attachments, engine.Attachment{Type: "document"})
		}
	}

	if err := r.dispatcher.Process(ctx, ev); err != nil {
		logger.Warn(ctx, "tg", "event.enqueue",
			slog.String("status", "fail"),
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

func deleteWebhook(token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	body := "drop_pending_updates=false"
	if dropPending {
		body = "drop_pending_updates=true"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
