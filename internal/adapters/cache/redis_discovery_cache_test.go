package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	redisclient "github.com/zatekoja/poidiscovery/internal/infrastructure/clients/redis"
	"github.com/zatekoja/poidiscovery/pkg/clock"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClientWithOptions(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisAdapter(client)
}

func sampleResult() *entities.DiscoveryResult {
	return &entities.DiscoveryResult{
		POIs: []*entities.POI{
			entities.NewPOI("ChIJ-1", entities.POI{Name: "Timberline Lodge", Rating: 4.7, DistanceKm: 9.5, Source: entities.POISourcePlaces}),
		},
		StrategyUsed:   entities.StrategyHybrid,
		ResponseTimeMs: 420,
		Category:       "attraction",
	}
}

func TestRedisAdapter_MissIsTyped(t *testing.T) {
	_, adapter := newTestRedis(t)

	_, err := adapter.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, adapter.Set(context.Background(), "k", []byte("v"), time.Minute))
	ok, err := adapter.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, adapter.Delete(context.Background(), "k"))
	ok, err = adapter.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisDiscoveryCache_RoundTrip(t *testing.T) {
	mr, adapter := newTestRedis(t)
	clk := clock.NewManual(time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC))
	cache := NewRedisDiscoveryCache(adapter, clk)

	cache.Put(context.Background(), "45.498,-121.821|attraction", sampleResult())

	entry, ok := cache.Get(context.Background(), "45.498,-121.821|attraction")
	require.True(t, ok)
	assert.Equal(t, clk.Now(), entry.Timestamp.UTC())
	require.Len(t, entry.Result.POIs, 1)
	assert.Equal(t, "ChIJ-1", entry.Result.POIs[0].ID)
	assert.Equal(t, entities.StrategyHybrid, entry.Result.StrategyUsed)

	ttl := mr.TTL(discoveryKeyPrefix + "45.498,-121.821|attraction")
	assert.Equal(t, providers.DiscoveryCacheTTL, ttl)
}

func TestRedisDiscoveryCache_ExpiresByClock(t *testing.T) {
	_, adapter := newTestRedis(t)
	clk := clock.NewManual(time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC))
	cache := NewRedisDiscoveryCache(adapter, clk)

	cache.Put(context.Background(), "k", sampleResult())

	clk.Advance(providers.DiscoveryCacheTTL)
	_, ok := cache.Get(context.Background(), "k")
	assert.True(t, ok, "entry is live at exactly the ttl")

	clk.Advance(time.Second)
	_, ok = cache.Get(context.Background(), "k")
	assert.False(t, ok)

	exists, err := adapter.Exists(context.Background(), discoveryKeyPrefix+"k")
	require.NoError(t, err)
	assert.False(t, exists, "expired entry is evicted on read")
}

func TestRedisDiscoveryCache_ExpiresByRedisTTL(t *testing.T) {
	mr, adapter := newTestRedis(t)
	cache := NewRedisDiscoveryCache(adapter, nil)

	cache.Put(context.Background(), "k", sampleResult())
	mr.FastForward(providers.DiscoveryCacheTTL + time.Second)

	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisDiscoveryCache_CorruptEntryIsMiss(t *testing.T) {
	mr, adapter := newTestRedis(t)
	cache := NewRedisDiscoveryCache(adapter, nil)

	require.NoError(t, mr.Set(discoveryKeyPrefix+"k", "{not json"))

	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.False(t, mr.Exists(discoveryKeyPrefix+"k"))
}

func TestRedisDiscoveryCache_UnreachableRedisIsMiss(t *testing.T) {
	mr, adapter := newTestRedis(t)
	cache := NewRedisDiscoveryCache(adapter, nil)
	mr.Close()

	assert.NotPanics(t, func() {
		cache.Put(context.Background(), "k", sampleResult())
	})
	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok)
}
