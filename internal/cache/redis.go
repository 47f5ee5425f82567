// Package cache keeps recent diagnosis reports in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "diagnosis:"

// RedisCache stores JSON-encoded values under diagnosis:<vehicle id>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures NewRedisCache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, opts Options) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return NewWithClient(rdb, opts.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Save stores v for the vehicle with the cache TTL.
func (c *RedisCache) Save(ctx context.Context, vehicleID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+vehicleID, data, c.ttl).Err()
}

// Load decodes the cached value into dst. found is false on a miss.
func (c *RedisCache) Load(ctx context.Context, vehicleID string, dst interface{}) (found bool, err error) {
	val, err := c.client.Get(ctx, keyPrefix+vehicleID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate drops the cached value for the vehicle.
func (c *RedisCache) Invalidate(ctx context.Context, vehicleID string) error {
	return c.client.Del(ctx, keyPrefix+vehicleID).Err()
}
