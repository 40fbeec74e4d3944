package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RawCache keeps downloaded report files under <prefix>:<key>.
type RawCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRawCache(rdb *redis.Client, prefix string, ttl time.Duration) *RawCache {
	if prefix == "" {
		prefix = "cot"
	}
	return &RawCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RawCache) key(k string) string { return c.prefix + ":" + k }

func (c *RawCache) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RawCache) SetRaw(ctx context.Context, key string, b []byte) error {
	return c.rdb.Set(ctx, c.key(key), b, c.ttl).Err()
}
