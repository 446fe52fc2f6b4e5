package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/domain/repositories"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
)

const analyticsWriteTimeout = 5 * time.Second

// ErrAnalyticsStoreDisabled is returned by queries when no event store is configured.
var ErrAnalyticsStoreDisabled = errors.New("discovery analytics store is not configured")

// DiscoveryAnalyticsService records discovery outcomes without blocking the
// request path. Events go to the repository and, when set, to a live event bus.
type DiscoveryAnalyticsService struct {
	repo repositories.DiscoveryEventRepository
	bus  providers.DiscoveryEventBus
	wg   sync.WaitGroup
}

// NewDiscoveryAnalyticsService creates the service. repo may be nil when only
// the live feed is wanted.
func NewDiscoveryAnalyticsService(repo repositories.DiscoveryEventRepository) *DiscoveryAnalyticsService {
	return &DiscoveryAnalyticsService{repo: repo}
}

// SetEventBus publishes every tracked event on bus.
func (s *DiscoveryAnalyticsService) SetEventBus(bus providers.DiscoveryEventBus) {
	s.bus = bus
}

// TrackDiscovery persists and publishes event in the background. Failures
// are logged and dropped.
func (s *DiscoveryAnalyticsService) TrackDiscovery(ctx context.Context, event *entities.DiscoveryEvent) {
	if s.repo == nil && s.bus == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	logger := observability.LoggerFromContext(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// the request context is usually done by the time this runs
		bgCtx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()

		if s.repo != nil {
			if err := s.repo.LogEvent(bgCtx, event); err != nil {
				logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to log discovery event")
			}
		}
		if s.bus != nil {
			if err := s.bus.Publish(bgCtx, event); err != nil {
				logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to publish discovery event")
			}
		}
	}()
}

// GetFallbackEvents returns the most recent discoveries that needed a fallback.
func (s *DiscoveryAnalyticsService) GetFallbackEvents(ctx context.Context, limit int) ([]*entities.DiscoveryEvent, error) {
	if s.repo == nil {
		return nil, ErrAnalyticsStoreDisabled
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.ListFallbackEvents(ctx, limit)
}

// Wait blocks until every pending write has finished.
func (s *DiscoveryAnalyticsService) Wait() {
	s.wg.Wait()
}
