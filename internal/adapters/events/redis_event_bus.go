package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	redisclient "github.com/zatekoja/poidiscovery/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 100

var _ providers.DiscoveryEventBus = (*RedisEventBus)(nil)

// RedisEventBus implements providers.DiscoveryEventBus using Redis Pub/Sub.
// One Redis subscription is shared by every local subscriber.
type RedisEventBus struct {
	client      *redisclient.Client
	channel     string
	pubsub      *redis.PubSub
	subscribers map[chan *entities.DiscoveryEvent]struct{}
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
}

// NewRedisEventBus creates a new Redis-based event bus on
// providers.DiscoveryEventsChannel
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	return NewRedisEventBusOnChannel(client, providers.DiscoveryEventsChannel)
}

// NewRedisEventBusOnChannel creates a bus on a custom channel
func NewRedisEventBusOnChannel(client *redisclient.Client, channel string) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:      client,
		channel:     channel,
		subscribers: make(map[chan *entities.DiscoveryEvent]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, event *entities.DiscoveryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", b.channel).Str("event_id", event.ID).Msg("published discovery event")
	return nil
}

// Subscribe registers a local subscriber. The first subscriber opens the Redis
// subscription; the last one to leave closes it. The confirmation round-trip
// runs without holding the bus lock.
func (b *RedisEventBus) Subscribe(ctx context.Context) (<-chan *entities.DiscoveryEvent, error) {
	eventChan := make(chan *entities.DiscoveryEvent, subscriberBuffer)

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, errors.New("event bus closed")
		}
		if b.pubsub != nil {
			b.subscribers[eventChan] = struct{}{}
			break
		}
		b.mu.Unlock()

		pubsub, err := b.openSubscription(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		if b.closed || b.pubsub != nil {
			// Closed meanwhile, or another subscriber won the race.
			b.mu.Unlock()
			_ = pubsub.Close()
			continue
		}
		b.pubsub = pubsub
		b.subscribers[eventChan] = struct{}{}
		go b.receiveMessages(pubsub)
		break
	}
	subscriberCount := len(b.subscribers)
	b.mu.Unlock()

	log.Debug().Str("channel", b.channel).Int("subscribers", subscriberCount).Msg("subscribed to discovery events")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(eventChan)
	}()

	return eventChan, nil
}

// openSubscription subscribes and waits for the confirmation so events
// published right after Subscribe returns are not missed.
func (b *RedisEventBus) openSubscription(ctx context.Context) (*redis.PubSub, error) {
	pubsub := b.client.Client().Subscribe(b.ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	return pubsub, nil
}

// receiveMessages receives messages from Redis and broadcasts them to subscribers
func (b *RedisEventBus) receiveMessages(pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.DiscoveryEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", b.channel).Msg("failed to unmarshal discovery event")
				continue
			}

			b.mu.RLock()
			for subscriber := range b.subscribers {
				select {
				case subscriber <- &event:
				default:
					log.Warn().Str("event_id", event.ID).Msg("subscriber channel full, skipping discovery event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(eventChan chan *entities.DiscoveryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[eventChan]; !ok {
		return
	}
	delete(b.subscribers, eventChan)
	close(eventChan)

	if len(b.subscribers) == 0 && b.pubsub != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
		log.Debug().Str("channel", b.channel).Msg("closed discovery event subscription")
	}
}

// SubscriberCount returns the number of local subscribers
func (b *RedisEventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for subscriber := range b.subscribers {
		close(subscriber)
		delete(b.subscribers, subscriber)
	}

	if b.pubsub != nil {
		err := b.pubsub.Close()
		b.pubsub = nil
		if err != nil {
			return fmt.Errorf("failed to close subscription %s: %w", b.channel, err)
		}
	}
	return nil
}
