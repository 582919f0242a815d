package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// RedisGapCache stores evaluated gap lists under their input fingerprint.
type RedisGapCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisGapCache builds a cache on client. A zero ttl keeps entries
// until Redis evicts them.
func NewRedisGapCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisGapCache {
	return &RedisGapCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisGapCache) Get(ctx context.Context, fingerprint string) ([]domain.Gap, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var gaps []domain.Gap
	if err := json.Unmarshal(raw, &gaps); err != nil {
		return nil, false, err
	}
	if gaps == nil {
		gaps = []domain.Gap{}
	}
	return gaps, true, nil
}

func (c *RedisGapCache) Set(ctx context.Context, fingerprint string, gaps []domain.Gap) error {
	raw, err := json.Marshal(gaps)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+fingerprint, raw, c.ttl).Err()
}
