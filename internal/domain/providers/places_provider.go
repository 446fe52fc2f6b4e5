package providers

import (
	"context"
	"fmt"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// Automotive safety clamps applied at the places boundary. Inputs above these
// limits are clamped, never rejected.
const (
	MaxSearchRadiusMeters = 50000
	MaxResultsPerCall     = 20
)

// PlacesQuery is a nearby-search request against a remote places provider
type PlacesQuery struct {
	Center       entities.Coordinates
	Category     string // generic category as requested by the caller
	ProviderType string // category mapped to the provider's vocabulary
	RadiusMeters int
	MaxResults   int
}

// ClampPlacesQuery returns q with radius and result count limited to the
// safety clamps. Non-positive values are raised to 1.
func ClampPlacesQuery(q PlacesQuery) PlacesQuery {
	q.RadiusMeters = clampInt(q.RadiusMeters, 1, MaxSearchRadiusMeters)
	q.MaxResults = clampInt(q.MaxResults, 1, MaxResultsPerCall)
	return q
}

// PlacesProvider searches for POIs around a point
type PlacesProvider interface {
	SearchPOIs(ctx context.Context, query PlacesQuery) ([]*entities.POI, error)
}

// HTTPError is returned when the places endpoint answers with a non-2xx status
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("places request returned status %d", e.StatusCode)
}

// APIError is returned when the places endpoint answers 2xx but reports a
// failure in its payload (e.g. REQUEST_DENIED, OVER_QUERY_LIMIT).
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places request failed: %s - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("places request failed: %s", e.Status)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
