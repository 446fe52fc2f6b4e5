package providers

import (
	"context"
	"time"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// DiscoveryCacheTTL is how long a discovery result stays servable
const DiscoveryCacheTTL = 5 * time.Minute

// DiscoveryCache memoizes discovery results by location grid cell and category.
// Implementations must be safe for concurrent use; Get and Put are atomic per
// key and nothing stronger is promised.
type DiscoveryCache interface {
	// Get returns the entry for key when it is younger than DiscoveryCacheTTL.
	// Expired entries are evicted and reported as absent.
	Get(ctx context.Context, key string) (*entities.CachedDiscovery, bool)

	// Put stores result under key, overwriting any previous entry.
	Put(ctx context.Context, key string, result *entities.DiscoveryResult)
}
