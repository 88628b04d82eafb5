package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Options(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := store.GetOption(ctx, "webhook_subscription")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetOption(ctx, "webhook_subscription", `{"id":"WH-1"}`))
	value, found, err := store.GetOption(ctx, "webhook_subscription")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"WH-1"}`, value)

	require.NoError(t, store.DeleteOption(ctx, "webhook_subscription"))
	_, found, err = store.GetOption(ctx, "webhook_subscription")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Journal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state, err := store.RecordEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, EventNew, state)

	state, err = store.RecordEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, EventPending, state)

	require.NoError(t, store.CompleteEvent(ctx, "WH-1"))
	state, err = store.RecordEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, EventDone, state)

	require.NoError(t, store.ForgetEvent(ctx, "WH-1"))
	state, err = store.RecordEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, EventNew, state)
}

func TestMemoryStore_ExpiredClaimIsTakenOver(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	state, err := store.RecordEvent(ctx, "WH-2", "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	require.Equal(t, EventNew, state)

	now = now.Add(PendingLease - time.Second)
	state, err = store.RecordEvent(ctx, "WH-2", "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, EventPending, state)

	now = now.Add(2 * time.Second)
	state, err = store.RecordEvent(ctx, "WH-2", "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, EventNew, state)

	require.NoError(t, store.CompleteEvent(ctx, "WH-2"))
	now = now.Add(24 * time.Hour)
	state, err = store.RecordEvent(ctx, "WH-2", "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, EventDone, state)
}
