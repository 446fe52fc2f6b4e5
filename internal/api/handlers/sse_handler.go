package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams completed discoveries as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.DiscoveryEventBus
	heartbeat time.Duration
	clients   atomic.Int64
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.DiscoveryEventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
	}
}

// SetHeartbeatInterval overrides how often idle streams get a heartbeat
func (h *SSEHandler) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

type regionFilter struct {
	center   entities.Coordinates
	radiusKm float64
}

func (f *regionFilter) matches(event *entities.DiscoveryEvent) bool {
	if f == nil {
		return true
	}
	return geo.DistanceKm(f.center.Latitude, f.center.Longitude, event.Latitude, event.Longitude) <= f.radiusKm
}

// StreamDiscoveries handles GET /api/pois/events/stream. With lat and lng the
// stream is limited to discoveries within radius_km (default 50) of that point.
func (h *SSEHandler) StreamDiscoveries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRegionFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)

	h.clients.Add(1)
	defer h.clients.Add(-1)

	eventChan, err := h.eventBus.Subscribe(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to subscribe to discovery events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connected := map[string]interface{}{"timestamp": time.Now()}
	if filter != nil {
		connected["lat"] = filter.center.Latitude
		connected["lng"] = filter.center.Longitude
		connected["radius_km"] = filter.radiusKm
	}
	h.sendEvent(ctx, w, "connected", connected)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("client disconnected from discovery stream")
			return
		case <-ticker.C:
			h.sendEvent(ctx, w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if !filter.matches(event) {
				continue
			}
			h.sendEvent(ctx, w, "discovery", event)
			flusher.Flush()
		}
	}
}

func parseRegionFilter(r *http.Request) (*regionFilter, error) {
	query := r.URL.Query()
	latRaw, lngRaw := query.Get("lat"), query.Get("lng")
	if latRaw == "" && lngRaw == "" {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude parameter")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude parameter")
	}

	radius := 50.0
	if raw := query.Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid radius_km parameter")
		}
		radius = parsed
	}

	return &regionFilter{
		center:   entities.Coordinates{Latitude: lat, Longitude: lng},
		radiusKm: radius,
	}, nil
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(ctx context.Context, w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// ClientCount returns the number of connected stream clients
func (h *SSEHandler) ClientCount() int {
	return int(h.clients.Load())
}
