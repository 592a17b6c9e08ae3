// Package digest periodically summarizes orders that need operator
// attention and sends the summary to the admin chat.
package digest

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/model"
)

// Ledger is the slice of order persistence the digest reads.
type Ledger interface {
	CountByStatus(ctx context.Context, status model.Status) (int, error)
}

// Sender delivers the digest message.
type Sender interface {
	Send(ctx context.Context, userID int64, reply engine.Reply) error
}

// Digest runs a cron-scheduled summary of pending returns and delayed
// shipments. It is disabled when the schedule or admin id is unset.
type Digest struct {
	ledger   Ledger
	sender   Sender
	adminID  int64
	schedule string

	cron *cron.Cron
}

// New constructs a Digest; Start activates the schedule.
func New(ledger Ledger, sender Sender, adminID int64, schedule string) *Digest {
	return &Digest{
		ledger:   ledger,
		sender:   sender,
		adminID:  adminID,
		schedule: schedule,
	}
}

// Enabled reports whether the digest has both a schedule and a recipient.
func (d *Digest) Enabled() bool {
	return d.schedule != "" && d.adminID != 0 && d.ledger != nil && d.sender != nil
}

// Start registers the cron entry and begins scheduling.
func (d *Digest) Start() error {
	if !d.Enabled() {
		logger.Info(context.Background(), "digest", "digest.disabled")
		return nil
	}

	d.cron = cron.New()
	_, err := d.cron.AddFunc(d.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.RunOnce(ctx); err != nil {
			logger.Error(ctx, "digest", "digest.run",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("register digest schedule %q: %w", d.schedule, err)
	}

	d.cron.Start()
	logger.Info(context.Background(), "digest", "digest.scheduled",
		slog.String("mode", d.schedule),
	)
	return nil
}

// Stop halts the schedule and waits for a running digest to finish.
func (d *Digest) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}

// RunOnce gathers the counts and sends one digest message.
func (d *Digest) RunOnce(ctx context.Context) error {
	start := time.Now()

	returns, err := d.ledger.CountByStatus(ctx, model.StatusReturnRequested)
	if err != nil {
		return fmt.Errorf("count return requests: %w", err)
	}
	delayed, err := d.ledger.CountByStatus(ctx, model.StatusDelayed)
	if err != nil {
		return fmt.Errorf("count delayed orders: %w", err)
	}

	reply := engine.Reply{Text: formatDigest(returns, delayed)}
	if err := d.sender.Send(ctx, d.adminID, reply); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	logger.Info(ctx, "digest", "digest.sent",
		slog.String("status", "ok"),
		slog.Int("count", returns+delayed),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func formatDigest(returns, delayed int) string {
	return fmt.Sprintf("Сводка по заказам\nЗапросы на возврат: %d\nЗадержанные отправления: %d", returns, delayed)
}
