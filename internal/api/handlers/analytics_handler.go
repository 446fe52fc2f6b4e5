package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// FallbackEventLister reads recorded discovery calls that used a fallback
type FallbackEventLister interface {
	GetFallbackEvents(ctx context.Context, limit int) ([]*entities.DiscoveryEvent, error)
}

// AnalyticsHandler exposes discovery analytics
type AnalyticsHandler struct {
	events FallbackEventLister
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(events FallbackEventLister) *AnalyticsHandler {
	return &AnalyticsHandler{events: events}
}

// GetFallbackEvents handles GET /api/analytics/fallbacks
func (h *AnalyticsHandler) GetFallbackEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	events, err := h.events.GetFallbackEvents(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to fetch fallback events")
		return
	}
	if events == nil {
		events = []*entities.DiscoveryEvent{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
