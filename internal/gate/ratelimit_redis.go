package gate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps per-client windows in a Redis sorted set scored by event
// time, so the limit holds across replicas sharing one Redis. Each recorded
// event gets a unique member.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore builds a Redis-backed sliding window store. now is injectable
// for tests; nil selects time.Now.
func NewRedisStore(client *redis.Client, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func redisKey(key string) string { return "ratelimit:" + key }

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := s.now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	k := redisKey(key)

	// Count only events strictly newer than the cutoff.
	count, err := s.client.ZCount(ctx, k, "("+cutoff, "+inf").Result()
	if err != nil {
		return false, fmt.Errorf("count window for key %s: %w", key, err)
	}
	if count >= int64(limit) {
		return false, nil
	}

	p := s.client.Pipeline()
	p.ZRemRangeByScore(ctx, k, "0", cutoff)
	p.ZAdd(ctx, k, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	p.Expire(ctx, k, window+time.Minute)
	if _, err := p.Exec(ctx); err != nil {
		return false, fmt.Errorf("record event for key %s: %w", key, err)
	}
	return true, nil
}
