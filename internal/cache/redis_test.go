package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	VehicleID string `json:"vehicle_id"`
	Status    string `json:"status"`
}

// Set REDIS_ADDR to run against a live server.
func liveCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisCache(context.Background(), Options{Addr: addr, DB: 15, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, Options{Addr: "127.0.0.1:1", TTL: time.Minute})
	assert.Error(t, err)
}

func TestSaveLoadInvalidate(t *testing.T) {
	c := liveCache(t)
	ctx := context.Background()
	vehicle := "EV-TEST-" + time.Now().Format("150405.000000")

	var got report
	found, err := c.Load(ctx, vehicle, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Save(ctx, vehicle, report{VehicleID: vehicle, Status: "at_risk"}))

	found, err = c.Load(ctx, vehicle, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "at_risk", got.Status)

	ttl, err := c.client.TTL(ctx, keyPrefix+vehicle).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, vehicle))
	found, err = c.Load(ctx, vehicle, &got)
	require.NoError(t, err)
	assert.False(t, found)
}
