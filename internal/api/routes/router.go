package routes

import (
	"net/http"

	"github.com/zatekoja/poidiscovery/internal/api/handlers"
	"github.com/zatekoja/poidiscovery/internal/api/middleware"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	discoveryHandler *handlers.DiscoveryHandler
	analyticsHandler *handlers.AnalyticsHandler
	sseHandler       *handlers.SSEHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. analyticsHandler and sseHandler may be nil
// when the analytics store or the live event feed is disabled.
func NewRouter(
	discoveryHandler *handlers.DiscoveryHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	sseHandler *handlers.SSEHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		discoveryHandler: discoveryHandler,
		analyticsHandler: analyticsHandler,
		sseHandler:       sseHandler,
		allowedOrigins:   allowedOrigins,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Discovery endpoints
	r.mux.HandleFunc("GET /api/pois/discover", r.discoveryHandler.Discover)
	r.mux.HandleFunc("GET /api/pois/cache/stats", r.discoveryHandler.CacheStats)

	// Analytics endpoints
	if r.analyticsHandler != nil {
		r.mux.HandleFunc("GET /api/analytics/fallbacks", r.analyticsHandler.GetFallbackEvents)
	}

	// Live discovery feed
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/pois/events/stream", r.sseHandler.StreamDiscoveries)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the mux
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
