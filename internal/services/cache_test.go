package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBreakerOpensWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewCacheService(client)
	ctx := context.Background()

	for i := 0; i < cacheBreakerFailures; i++ {
		err := cache.Set(ctx, "k", 1, time.Minute)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateOpen, cache.State())

	var dest int
	assert.ErrorIs(t, cache.Get(ctx, "k", &dest), gobreaker.ErrOpenState)
	assert.ErrorIs(t, cache.Delete(ctx, "k"), gobreaker.ErrOpenState)
}
