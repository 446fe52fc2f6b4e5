package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/poidiscovery/internal/adapters/database"
	"github.com/zatekoja/poidiscovery/internal/adapters/events"
	"github.com/zatekoja/poidiscovery/internal/api/handlers"
	"github.com/zatekoja/poidiscovery/internal/api/routes"
	"github.com/zatekoja/poidiscovery/internal/application/services"
	"github.com/zatekoja/poidiscovery/internal/domain/repositories"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/redis"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	placesProvider := newPlacesProvider(&cfg.Places)

	inferenceProvider, closeInference, err := newInferenceProvider(ctx, &cfg.Inference)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize inference provider")
	}
	defer closeInference()

	var redisClient *redis.Client
	if needsRedis(cfg) {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Redis client")
		}
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	}

	discoveryCache, cacheStats, err := newDiscoveryCache(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize discovery cache")
	}

	opts, err := discoveryOptions(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid discovery configuration")
	}

	discoveryService := services.NewPOIDiscoveryService(inferenceProvider, placesProvider, discoveryCache, opts)
	discoveryService.SetMetrics(metrics)

	var (
		eventRepo        repositories.DiscoveryEventRepository
		eventBus         *events.RedisEventBus
		analyticsService *services.DiscoveryAnalyticsService
		analyticsHandler *handlers.AnalyticsHandler
		sseHandler       *handlers.SSEHandler
	)

	if cfg.Discovery.AnalyticsEnabled {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()

		eventAdapter := database.NewDiscoveryEventAdapter(pgClient)
		if err := eventAdapter.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare discovery analytics schema")
		}
		eventRepo = eventAdapter
	}

	if cfg.Discovery.EventsEnabled {
		eventBus = events.NewRedisEventBus(redisClient)
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	if eventRepo != nil || eventBus != nil {
		analyticsService = services.NewDiscoveryAnalyticsService(eventRepo)
		if eventBus != nil {
			analyticsService.SetEventBus(eventBus)
		}
		discoveryService.SetAnalytics(analyticsService)
	}
	if eventRepo != nil {
		analyticsHandler = handlers.NewAnalyticsHandler(analyticsService)
	}

	router := routes.NewRouter(
		handlers.NewDiscoveryHandler(discoveryService, cacheStats),
		analyticsHandler,
		sseHandler,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Open event streams never go idle; end them when shutdown starts
	if eventBus != nil {
		server.RegisterOnShutdown(func() {
			if err := eventBus.Close(); err != nil {
				log.Error().Err(err).Msg("error closing event bus")
			}
		})
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("default_strategy", string(opts.DefaultStrategy)).
			Str("places_provider", cfg.Places.Provider).
			Str("inference_provider", cfg.Inference.Provider).
			Str("cache_backend", cfg.Discovery.CacheBackend).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Flush pending analytics writes before the database client closes
	if analyticsService != nil {
		analyticsService.Wait()
	}

	log.Info().Msg("server stopped")
}
