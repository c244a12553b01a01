package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("b"), 0))

	got, err := m.Get(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))
	now = now.Add(time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, m, "rec", record{Name: "x", Count: 2}, 0))
	var out record
	require.NoError(t, GetJSON(ctx, m, "rec", &out))
	assert.Equal(t, record{Name: "x", Count: 2}, out)

	require.NoError(t, m.Set(ctx, "bad", []byte("{"), 0))
	assert.Error(t, GetJSON(ctx, m, "bad", &out))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "healsync:")
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("healsync:k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "d", []byte("x"), 0))
	require.NoError(t, s.Delete(ctx, "d"))
	_, err = s.Get(ctx, "d")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartSweeper(t *testing.T) {
	m := NewMemoryStore()
	scheduler, err := m.StartSweeper(time.Hour, nil)
	require.NoError(t, err)
	scheduler.Stop()
}
