package repositories

import (
	"context"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// DiscoveryEventRepository persists discovery analytics
type DiscoveryEventRepository interface {
	LogEvent(ctx context.Context, event *entities.DiscoveryEvent) error
	ListFallbackEvents(ctx context.Context, limit int) ([]*entities.DiscoveryEvent, error)
}
