package linkage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupePrefix = "rxlink:compare:"

type Deduper interface {
	// Claim reports false when the request was already claimed.
	Claim(ctx context.Context, requestID string) (bool, error)
	Release(ctx context.Context, requestID string) error
}

type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, requestID string) (bool, error) {
	return d.client.SetNX(ctx, dedupePrefix+requestID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, requestID string) error {
	return d.client.Del(ctx, dedupePrefix+requestID).Err()
}
