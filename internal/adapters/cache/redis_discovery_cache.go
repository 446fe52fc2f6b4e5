package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/clock"
)

const discoveryKeyPrefix = "poi:discovery:v1:"

// RedisDiscoveryCache shares discovery results between instances. Entries
// carry their write time and are checked against the injected clock as well
// as the Redis TTL, so expiry stays exact under clock skew between Redis and
// the service.
//
// Redis failures degrade to cache misses and are only logged.
type RedisDiscoveryCache struct {
	store providers.CacheProvider
	clock clock.Clock
}

// NewRedisDiscoveryCache creates a discovery cache over store. A nil clock
// uses the system clock.
func NewRedisDiscoveryCache(store providers.CacheProvider, c clock.Clock) *RedisDiscoveryCache {
	if c == nil {
		c = clock.Real{}
	}
	return &RedisDiscoveryCache{store: store, clock: c}
}

// Get returns the live entry for key
func (c *RedisDiscoveryCache) Get(ctx context.Context, key string) (*entities.CachedDiscovery, bool) {
	payload, err := c.store.Get(ctx, discoveryKeyPrefix+key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discovery cache read failed")
		}
		return nil, false
	}

	var entry entities.CachedDiscovery
	if err := json.Unmarshal(payload, &entry); err != nil || entry.Result == nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("dropping unreadable discovery cache entry")
		_ = c.store.Delete(ctx, discoveryKeyPrefix+key)
		return nil, false
	}

	if entry.Expired(c.clock.Now(), providers.DiscoveryCacheTTL) {
		_ = c.store.Delete(ctx, discoveryKeyPrefix+key)
		return nil, false
	}
	return &entry, true
}

// Put stores result under key
func (c *RedisDiscoveryCache) Put(ctx context.Context, key string, result *entities.DiscoveryResult) {
	payload, err := json.Marshal(entities.CachedDiscovery{Result: result, Timestamp: c.clock.Now()})
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to encode discovery result")
		return
	}
	if err := c.store.Set(ctx, discoveryKeyPrefix+key, payload, providers.DiscoveryCacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discovery cache write failed")
	}
}
