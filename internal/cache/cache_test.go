package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	require.NoError(t, store.Set(ctx, "summary:1", []byte(`{"a":1}`), time.Minute))

	value, ok, err := store.Get(ctx, "summary:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(value))

	clk.Advance(time.Minute)
	_, ok, err = store.Get(ctx, "summary:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDeleteAndZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	require.NoError(t, store.Set(ctx, "skip", []byte("x"), 0))
	_, ok, _ := store.Get(ctx, "skip")
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("x"), time.Hour))
	require.NoError(t, store.Delete(ctx, "k", "missing"))
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)

	_, ok, err := store.Get(ctx, "summary:42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "summary:42", []byte("payload"), 30*time.Second))
	assert.True(t, mr.Exists("seatfee:summary:42"))

	value, ok, err := store.Get(ctx, "summary:42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(value))

	mr.FastForward(31 * time.Second)
	_, ok, err = store.Get(ctx, "summary:42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "summary:42", []byte("payload"), time.Minute))
	require.NoError(t, store.Delete(ctx, "summary:42"))
	assert.False(t, mr.Exists("seatfee:summary:42"))
}
