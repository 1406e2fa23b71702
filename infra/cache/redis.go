package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached results between API replicas.
type RedisCache struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache connects to addr and checks the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, keyPrefix string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (c *RedisCache) key(id string) string { return c.keyPrefix + id }

func (c *RedisCache) Get(ctx context.Context, id string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, id string, payload []byte) error {
	return c.rdb.Set(ctx, c.key(id), payload, c.ttl).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error { return c.rdb.Close() }
