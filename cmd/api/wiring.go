package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/poidiscovery/internal/adapters/cache"
	"github.com/zatekoja/poidiscovery/internal/adapters/providers/inference"
	"github.com/zatekoja/poidiscovery/internal/adapters/providers/places"
	"github.com/zatekoja/poidiscovery/internal/api/handlers"
	"github.com/zatekoja/poidiscovery/internal/application/services"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/openai"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/redis"
	"github.com/zatekoja/poidiscovery/pkg/clock"
	"github.com/zatekoja/poidiscovery/pkg/config"
)

// newPlacesProvider falls back to the mock provider when no key is configured.
func newPlacesProvider(cfg *config.PlacesConfig) providers.PlacesProvider {
	switch strings.ToLower(cfg.Provider) {
	case "google":
		if cfg.APIKey == "" {
			log.Warn().Msg("PLACES_API_KEY not set, using mock places provider")
			return places.NewMockPlacesProvider()
		}
		return places.NewGooglePlacesProviderWithOptions(
			cfg.APIKey,
			cfg.BaseURL,
			&http.Client{Timeout: cfg.Timeout},
			cfg.RetryAttempts,
		)
	default:
		return places.NewMockPlacesProvider()
	}
}

// newInferenceProvider returns the provider and a cleanup func.
func newInferenceProvider(ctx context.Context, cfg *config.InferenceConfig) (providers.InferenceProvider, func(), error) {
	noop := func() {}

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		if cfg.APIKey == "" {
			log.Warn().Msg("INFERENCE_API_KEY not set, using mock inference provider")
			return inference.NewMockInferenceProvider(), noop, nil
		}
		p, err := inference.NewGeminiProviderWithBaseURL(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("gemini provider: %w", err)
		}
		return p, noop, nil
	case "openai":
		client, err := openai.NewClient(cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("openai provider: %w", err)
		}
		return inference.NewOpenAIProvider(client), client.Close, nil
	case "mock", "":
		return inference.NewMockInferenceProvider(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported INFERENCE_PROVIDER %q", cfg.Provider)
	}
}

// needsRedis reports whether any enabled component talks to Redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.Discovery.CacheBackend == "redis" || cfg.Discovery.EventsEnabled
}

// newDiscoveryCache builds the configured cache backend. stats is nil for
// backends that cannot report their size.
func newDiscoveryCache(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (providers.DiscoveryCache, handlers.CacheStats, error) {
	if cfg.Discovery.CacheBackend == "redis" {
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis cache backend selected without a redis client")
		}
		return cache.NewRedisDiscoveryCache(cache.NewRedisAdapter(redisClient), clock.Real{}), nil, nil
	}

	memory := services.NewMemoryDiscoveryCache(clock.Real{})
	if cfg.Discovery.CacheSweepInterval > 0 {
		memory.StartSweeper(ctx, cfg.Discovery.CacheSweepInterval)
	}
	return memory, memory, nil
}

func discoveryOptions(cfg *config.Config) (services.DiscoveryOptions, error) {
	strategy, err := entities.ParseStrategy(cfg.Discovery.DefaultStrategy)
	if err != nil {
		return services.DiscoveryOptions{}, err
	}
	return services.DiscoveryOptions{
		DefaultStrategy:   strategy,
		DefaultMaxResults: cfg.Discovery.DefaultMaxResults,
		RadiusMeters:      cfg.Discovery.RadiusMeters,
		LLMMaxTokens:      cfg.Inference.MaxTokens,
		LLMTimeout:        cfg.Discovery.LLMTimeout,
		PlacesTimeout:     cfg.Discovery.PlacesTimeout,
		SingleFlight:      cfg.Discovery.SingleFlight,
	}, nil
}
