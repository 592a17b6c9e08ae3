package digest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/ledger"
	"github.com/escapismart/shopbot/shop/model"
)

type recordingSender struct {
	userID int64
	texts  []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, userID int64, reply engine.Reply) error {
	if s.err != nil {
		return s.err
	}
	s.userID = userID
	s.texts = append(s.texts, reply.Text)
	return nil
}

func TestRunOnceSendsCounts(t *testing.T) {
	led := ledger.NewMemory()
	ctx := context.Background()

	id, err := led.Create(ctx, 1, "заказ 1", model.StatusConfirmed)
	require.NoError(t, err)
	require.NoError(t, led.UpdateStatus(ctx, id, model.StatusReturnRequested))

	id, err = led.Create(ctx, 2, "заказ 2", model.StatusConfirmed)
	require.NoError(t, err)
	require.NoError(t, led.UpdateStatus(ctx, id, model.StatusDelayed))

	_, err = led.Create(ctx, 3, "заказ 3", model.StatusConfirmed)
	require.NoError(t, err)

	sender := &recordingSender{}
	d := New(led, sender, 777, "0 9 * * *")
	require.NoError(t, d.RunOnce(ctx))

	require.Len(t, sender.texts, 1)
	assert.Equal(t, int64(777), sender.userID)
	assert.Equal(t, "Сводка по заказам\nЗапросы на возврат: 1\nЗадержанные отправления: 1", sender.texts[0])
}

func TestRunOnceSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("api down")}
	d := New(ledger.NewMemory(), sender, 777, "@hourly")

	err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send digest")
}

func TestEnabled(t *testing.T) {
	led := ledger.NewMemory()
	sender := &recordingSender{}

	assert.True(t, New(led, sender, 1, "@daily").Enabled())
	assert.False(t, New(led, sender, 0, "@daily").Enabled())
	assert.False(t, New(led, sender, 1, "").Enabled())
	assert.False(t, New(nil, sender, 1, "@daily").Enabled())
}

func TestStartDisabledIsNoop(t *testing.T) {
	d := New(ledger.NewMemory(), &recordingSender{}, 0, "")
	require.NoError(t, d.Start())
	d.Stop()
}

func TestFormatDigest(t *testing.T) {
	assert.Equal(t,
		"Сводка по заказам\nЗапросы на возврат: 0\nЗадержанные отправления: 0",
		formatDigest(0, 0))
}
