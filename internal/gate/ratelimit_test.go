package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a controllable time source for window tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreAllowsUpToLimit(t *testing.T) {
	ck := newClock()
	s := NewMemoryStore(ck.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := s.Allow(ctx, "client-a", 5, time.Minute)
		require.NoError(t, err)
		require.Truef(t, ok, "request %d should be admitted", i+1)
	}
	ok, err := s.Allow(ctx, "client-a", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreWindowSlides(t *testing.T) {
	ck := newClock()
	s := NewMemoryStore(ck.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := s.Allow(ctx, "c", 3, time.Minute)
		require.True(t, ok)
		ck.Advance(10 * time.Second)
	}
	// t=30s: window holds events at 0s, 10s, 20s.
	ok, _ := s.Allow(ctx, "c", 3, time.Minute)
	assert.False(t, ok)

	// t=61s: the event at 0s has aged out.
	ck.Advance(31 * time.Second)
	ok, _ = s.Allow(ctx, "c", 3, time.Minute)
	assert.True(t, ok)
}

func TestMemoryStoreDeniedAttemptsNotRecorded(t *testing.T) {
	ck := newClock()
	s := NewMemoryStore(ck.Now)
	ctx := context.Background()

	ok, _ := s.Allow(ctx, "c", 1, time.Minute)
	require.True(t, ok)

	// Hammering while denied must not extend the lockout.
	for i := 0; i < 10; i++ {
		ck.Advance(5 * time.Second)
		ok, _ = s.Allow(ctx, "c", 1, time.Minute)
		require.False(t, ok)
	}
	// t=60s+: the single recorded event has aged out despite the denials.
	ck.Advance(11 * time.Second)
	ok, _ = s.Allow(ctx, "c", 1, time.Minute)
	assert.True(t, ok)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	ck := newClock()
	s := NewMemoryStore(ck.Now)
	ctx := context.Background()

	ok, _ := s.Allow(ctx, "a", 1, time.Minute)
	require.True(t, ok)
	ok, _ = s.Allow(ctx, "a", 1, time.Minute)
	require.False(t, ok)

	ok, _ = s.Allow(ctx, "b", 1, time.Minute)
	assert.True(t, ok)
}

func TestMemoryStoreEvictsIdleBuckets(t *testing.T) {
	ck := newClock()
	s := NewMemoryStore(ck.Now)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := s.Allow(ctx, key, 10, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.len())

	// Past idleFactor windows, a fresh access sweeps the idle buckets.
	ck.Advance(4 * time.Minute)
	_, err := s.Allow(ctx, "d", 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.len())
}

func TestMemoryStoreConcurrentSameKey(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	const limit = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Allow(ctx, "shared", limit, time.Minute)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, limit, admitted)
}

// failingStore simulates a shared store outage.
type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestLimiterCheck(t *testing.T) {
	ck := newClock()
	l := NewLimiter(NewMemoryStore(ck.Now), 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "c", 0, 0))
	require.NoError(t, l.Check(ctx, "c", 0, 0))
	err := l.Check(ctx, "c", 0, 0)
	require.True(t, IsRateLimit(err))
	assert.Equal(t, "Rate limit exceeded: 2 requests per 60 seconds", err.Error())
}

func TestLimiterPerOpOverride(t *testing.T) {
	ck := newClock()
	l := NewLimiter(NewMemoryStore(ck.Now), 60, time.Minute)
	ctx := context.Background()

	// Tighter per-op limit applies to this key.
	require.NoError(t, l.Check(ctx, "c", 1, 30*time.Second))
	err := l.Check(ctx, "c", 1, 30*time.Second)
	require.True(t, IsRateLimit(err))

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 1, rl.Max)
	assert.Equal(t, 30*time.Second, rl.Window)
}

func TestLimiterFailsClosedOnStoreError(t *testing.T) {
	l := NewLimiter(failingStore{}, 60, time.Minute)
	err := l.Check(context.Background(), "c", 0, 0)
	require.True(t, IsResource(err))
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "rate_limiter", re.ResourceType)
}
