package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sourcechat/internal/storage/memory"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after))
}

func TestClockDrivesCounterExpiry(t *testing.T) {
	t.Parallel()

	store := memory.NewCounterStore(New())
	ctx := context.Background()

	_, err := store.Incr(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Expire(ctx, "k", 20*time.Millisecond))

	require.Eventually(t, func() bool {
		n, err := store.Incr(ctx, "k")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}
