package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/model"
)

func TestMemoryGetMissingUser(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), 42)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemorySetIsIdempotentUpsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, 42, engine.StateOrdering))
	first, ok := m.LastInteraction(42)
	require.True(t, ok)

	require.NoError(t, m.Set(ctx, 42, engine.StateOrdering))
	second, ok := m.LastInteraction(42)
	require.True(t, ok)

	state, err := m.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, engine.StateOrdering, state)
	assert.False(t, second.Before(first), "repeated Set must refresh the interaction time")
}

func TestMemorySetOverwritesState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, 7, engine.StateNew))
	require.NoError(t, m.Set(ctx, 7, engine.StateOrderConfirmed))

	state, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, engine.StateOrderConfirmed, state)
}

func TestMemoryGetNormalizesUnknownState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, 7, engine.State("legacy_value")))

	state, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, engine.StateNew, state)
}
