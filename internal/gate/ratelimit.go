package gate

import (
	"context"
	"sync"
	"time"
)

// Store records request events per client key inside a sliding window and
// decides whether one more fits. Implementations must be safe for concurrent
// use; the window mutation for a key is an atomic read-modify-write with
// respect to other requests for the same key.
type Store interface {
	// Allow purges events older than now-window for key, then admits and
	// records the current event unless the window already holds limit
	// entries. Denied attempts are not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Limiter bounds request rate per client using a sliding window over a Store.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
}

const (
	defaultMaxRequests = 60
	defaultWindow      = 60 * time.Second
)

// NewLimiter builds a limiter with process-wide defaults; zero values select
// 60 requests per 60 seconds.
func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = defaultMaxRequests
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{store: store, max: max, window: window}
}

// Check admits or rejects one request for key. Per-operation overrides apply
// when max/window are non-zero. A store failure rejects the request
// (fail-closed) as a resource error.
func (l *Limiter) Check(ctx context.Context, key string, max int, window time.Duration) error {
	if max <= 0 {
		max = l.max
	}
	if window <= 0 {
		window = l.window
	}
	ok, err := l.store.Allow(ctx, key, max, window)
	if err != nil {
		return NewResourceError("Rate limit store unavailable", "rate_limiter")
	}
	if !ok {
		return &RateLimitError{Max: max, Window: window}
	}
	return nil
}

// bucket is one client's trailing window of request timestamps.
type bucket struct {
	times    []time.Time
	lastSeen time.Time
}

// MemoryStore keeps per-client windows in process memory. Buckets are created
// lazily and evicted by an access-triggered sweep once idle for several
// windows, bounding growth under client churn.
type MemoryStore struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	now        func() time.Time
	idleFactor int
	lastSweep  time.Time
}

// idleWindowFactor is how many windows a bucket may sit untouched before the
// sweep removes it.
const idleWindowFactor = 3

// NewMemoryStore builds an in-memory sliding window store. now is injectable
// for tests; nil selects time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		buckets:    make(map[string]*bucket),
		now:        now,
		idleFactor: idleWindowFactor,
	}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := s.now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now, window)

	b := s.buckets[key]
	if b == nil {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.lastSeen = now

	// Lazy purge: drop everything at or before the cutoff.
	kept := b.times[:0]
	for _, t := range b.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.times = kept

	if len(b.times) >= limit {
		return false, nil
	}
	b.times = append(b.times, now)
	return true, nil
}

// sweepLocked evicts buckets idle longer than idleFactor windows, at most
// once per window so hot paths stay O(window entries).
func (s *MemoryStore) sweepLocked(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	s.lastSweep = now
	idleCutoff := now.Add(-time.Duration(s.idleFactor) * window)
	for key, b := range s.buckets {
		if b.lastSeen.Before(idleCutoff) {
			delete(s.buckets, key)
		}
	}
}

// len reports the number of live buckets; test hook.
func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
