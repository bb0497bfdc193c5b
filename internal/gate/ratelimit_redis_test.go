package gate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *clock) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ck := newClock()
	return NewRedisStore(client, ck.Now), ck
}

func TestRedisStoreAllowsUpToLimit(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.Allow(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreWindowSlides(t *testing.T) {
	s, ck := newRedisStore(t)
	ctx := context.Background()

	ok, err := s.Allow(ctx, "c", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Allow(ctx, "c", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ck.Advance(61 * time.Second)
	ok, err = s.Allow(ctx, "c", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreDeniedAttemptsNotRecorded(t *testing.T) {
	s, ck := newRedisStore(t)
	ctx := context.Background()

	ok, err := s.Allow(ctx, "c", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		ck.Advance(10 * time.Second)
		ok, err = s.Allow(ctx, "c", 1, time.Minute)
		require.NoError(t, err)
		require.False(t, ok)
	}
	// Only the first event was recorded, so the window frees up after it.
	ck.Advance(11 * time.Second)
	ok, err = s.Allow(ctx, "c", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreKeysAreIndependent(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	ok, _ := s.Allow(ctx, "a", 1, time.Minute)
	require.True(t, ok)
	ok, _ = s.Allow(ctx, "a", 1, time.Minute)
	require.False(t, ok)
	ok, _ = s.Allow(ctx, "b", 1, time.Minute)
	assert.True(t, ok)
}

func TestRedisStoreSurfacesConnectionErrors(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	s := NewRedisStore(client, nil)
	server.Close()

	_, err = s.Allow(context.Background(), "c", 1, time.Minute)
	assert.Error(t, err)
}
