package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/pkg/clock"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

// defaultCacheCategory stands in for a missing category in cache keys
const defaultCacheCategory = "default"

// DiscoveryCacheKey builds the cache key for a location and category. The
// location is rounded to three decimal places, a grid of roughly 111 m.
func DiscoveryCacheKey(location entities.Coordinates, category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		c = defaultCacheCategory
	}
	return fmt.Sprintf("%.3f,%.3f|%s", geo.Round(location.Latitude, 3), geo.Round(location.Longitude, 3), c)
}

// MemoryDiscoveryCache is an in-process DiscoveryCache. Expired entries are
// evicted on read, and every Put sweeps the whole map so long sessions do not
// grow it without bound.
type MemoryDiscoveryCache struct {
	mu      sync.RWMutex
	entries map[string]*entities.CachedDiscovery
	clock   clock.Clock
	ttl     time.Duration
}

// NewMemoryDiscoveryCache creates an empty cache. A nil clock uses the system clock.
func NewMemoryDiscoveryCache(c clock.Clock) *MemoryDiscoveryCache {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryDiscoveryCache{
		entries: make(map[string]*entities.CachedDiscovery),
		clock:   c,
		ttl:     providers.DiscoveryCacheTTL,
	}
}

// Get returns the live entry for key.
func (c *MemoryDiscoveryCache) Get(_ context.Context, key string) (*entities.CachedDiscovery, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if entry.Expired(c.clock.Now(), c.ttl) {
		c.mu.Lock()
		// re-check: a concurrent Put may have replaced it
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Put stores result under key and sweeps expired entries.
func (c *MemoryDiscoveryCache) Put(_ context.Context, key string, result *entities.DiscoveryResult) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entities.CachedDiscovery{Result: result, Timestamp: now}
	c.sweepLocked(now)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *MemoryDiscoveryCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (c *MemoryDiscoveryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryDiscoveryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *MemoryDiscoveryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entities.CachedDiscovery)
	c.mu.Unlock()
}

func (c *MemoryDiscoveryCache) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
