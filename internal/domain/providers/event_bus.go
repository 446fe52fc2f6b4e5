package providers

import (
	"context"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// DiscoveryEventsChannel is the pub/sub channel completed discoveries are
// published on
const DiscoveryEventsChannel = "poi:discovery:events"

// DiscoveryEventBus fans discovery events out to live subscribers
type DiscoveryEventBus interface {
	// Publish sends event to every current subscriber
	Publish(ctx context.Context, event *entities.DiscoveryEvent) error

	// Subscribe returns a channel of events that is closed when ctx is done
	// or the bus is closed
	Subscribe(ctx context.Context) (<-chan *entities.DiscoveryEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}
