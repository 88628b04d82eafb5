package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paypal-gateway/internal/storage"
)

var _ storage.Store = (*Adapter)(nil)

func TestNewAdapter_InvalidConnString(t *testing.T) {
	_, err := NewAdapter("postgres://%zz")
	assert.Error(t, err)
}

func TestAdapter_Integration(t *testing.T) {
	adapter, ok, err := NewAdapterFromEnv()
	if !ok {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	require.NoError(t, err)
	defer adapter.Close()

	ctx := context.Background()
	key := "test_option_" + uuid.NewString()
	defer adapter.DeleteOption(ctx, key)

	require.NoError(t, adapter.SetOption(ctx, key, "one"))
	require.NoError(t, adapter.SetOption(ctx, key, "two"))
	value, found, err := adapter.GetOption(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "two", value)

	eventID := "WH-" + uuid.NewString()
	defer adapter.ForgetEvent(ctx, eventID)

	state, err := adapter.RecordEvent(ctx, eventID, "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, storage.EventNew, state)

	state, err = adapter.RecordEvent(ctx, eventID, "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, storage.EventPending, state)

	require.NoError(t, adapter.CompleteEvent(ctx, eventID))
	state, err = adapter.RecordEvent(ctx, eventID, "CHECKOUT.ORDER.APPROVED")
	require.NoError(t, err)
	assert.Equal(t, storage.EventDone, state)
}
