package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the resume timestamp outside the process so that several
// enrichers sharing one upstream honour the same pause.
type Store interface {
	// Load returns the shared resume time, or the zero time if none is set.
	Load(ctx context.Context) (time.Time, error)

	// Extend moves the shared resume time forward to resumeAt.
	// Implementations must never move it backwards.
	Extend(ctx context.Context, resumeAt time.Time) error
}

// extendScript sets the key only when the new value is later than the stored
// one, and lets Redis expire it once the pause is over.
var extendScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > current then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
return 0
`)

// RedisStore keeps the backoff window in Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (time.Time, error) {
	ms, err := s.redis.Get(ctx, RedisKeyResumeAt).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get resume timestamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Extend implements Store.
func (s *RedisStore) Extend(ctx context.Context, resumeAt time.Time) error {
	ttl := time.Until(resumeAt)
	if ttl <= 0 {
		return nil
	}

	err := extendScript.Run(ctx, s.redis,
		[]string{RedisKeyResumeAt},
		strconv.FormatInt(resumeAt.UnixMilli(), 10),
		strconv.FormatInt(ttl.Milliseconds()+1, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("store resume timestamp in redis: %w", err)
	}
	return nil
}
