package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/poidiscovery/pkg/errors"
)

// maxResultsLimit caps the max_results query parameter
const maxResultsLimit = 50

// POIDiscoverer runs a discovery call
type POIDiscoverer interface {
	Discover(ctx context.Context, req entities.DiscoveryRequest) (*entities.DiscoveryResult, error)
}

// CacheStats reports the number of live discovery cache entries
type CacheStats interface {
	Len() int
}

// DiscoveryHandler handles POI discovery HTTP requests
type DiscoveryHandler struct {
	discoverer POIDiscoverer
	stats      CacheStats
}

// NewDiscoveryHandler creates a new discovery handler. stats may be nil when
// the cache backend cannot report its size.
func NewDiscoveryHandler(discoverer POIDiscoverer, stats CacheStats) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoverer: discoverer,
		stats:      stats,
	}
}

// Discover handles GET /api/pois/discover
func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	req, err := parseDiscoveryRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.discoverer.Discover(r.Context(), req)
	if err != nil {
		status, message := discoveryErrorResponse(err)
		if status >= http.StatusInternalServerError {
			observability.LoggerFromContext(r.Context()).Error().
				Err(err).
				Str("strategy", string(req.Strategy)).
				Str("category", req.Category).
				Msg("discovery request failed")
		}
		respondWithError(w, status, message)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /api/pois/cache/stats
func (h *DiscoveryHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"entries":   nil,
			"available": false,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries":   h.stats.Len(),
		"available": true,
	})
}

func parseDiscoveryRequest(r *http.Request) (entities.DiscoveryRequest, error) {
	q := r.URL.Query()

	latRaw, lngRaw := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if latRaw == "" || lngRaw == "" {
		return entities.DiscoveryRequest{}, errors.New("lat and lng are required")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return entities.DiscoveryRequest{}, errors.New("lat must be a number")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return entities.DiscoveryRequest{}, errors.New("lng must be a number")
	}

	req := entities.DiscoveryRequest{
		Location: entities.Coordinates{Latitude: lat, Longitude: lng},
		Category: strings.TrimSpace(q.Get("category")),
		Strategy: entities.Strategy(strings.TrimSpace(q.Get("strategy"))),
	}

	if raw := strings.TrimSpace(q.Get("max_results")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return entities.DiscoveryRequest{}, errors.New("max_results must be a positive integer")
		}
		if n > maxResultsLimit {
			n = maxResultsLimit
		}
		req.MaxResults = n
	}

	return req, nil
}

func discoveryErrorResponse(err error) (int, string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			return http.StatusBadRequest, appErr.Message
		case apperrors.ErrorTypeSourceUnavailable:
			return http.StatusServiceUnavailable, "could not find places nearby"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "discovery timed out"
	}
	return http.StatusInternalServerError, "internal server error"
}
