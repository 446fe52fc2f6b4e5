package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/geo"
	"github.com/zatekoja/poidiscovery/pkg/retry"
)

const (
	googlePlacesNearbyURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultHTTPTimeout    = 3 * time.Second
)

// GooglePlacesProvider implements PlacesProvider with the Google Places
// Nearby Search API.
type GooglePlacesProvider struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryConfig retry.Config
}

// NewGooglePlacesProvider creates a new Google Places provider.
func NewGooglePlacesProvider(apiKey string, retryAttempts int) *GooglePlacesProvider {
	return NewGooglePlacesProviderWithOptions(apiKey, googlePlacesNearbyURL, nil, retryAttempts)
}

// NewGooglePlacesProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGooglePlacesProviderWithOptions(apiKey, baseURL string, httpClient *http.Client, retryAttempts int) *GooglePlacesProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googlePlacesNearbyURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	cfg := retry.LatencyBoundConfig(retryAttempts)
	cfg.Retryable = isRetryable
	return &GooglePlacesProvider{
		apiKey:      apiKey,
		httpClient:  httpClient,
		baseURL:     baseURL,
		retryConfig: cfg,
	}
}

// SearchPOIs runs a nearby search. The query is clamped before it is sent;
// ZERO_RESULTS is an empty answer, not an error.
func (g *GooglePlacesProvider) SearchPOIs(ctx context.Context, query providers.PlacesQuery) ([]*entities.POI, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google places api key is required")
	}
	query = providers.ClampPlacesQuery(query)

	var payload *googleNearbySearchResponse
	logger := observability.LoggerFromContext(ctx)
	err := retry.DoWithLog(ctx, g.retryConfig, "google places", func() error {
		var err error
		payload, err = g.doNearbySearch(ctx, query)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("places request failed, retrying")
	})
	if err != nil {
		return nil, err
	}

	pois := make([]*entities.POI, 0, min(len(payload.Results), query.MaxResults))
	for _, r := range payload.Results {
		if len(pois) == query.MaxResults {
			break
		}
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		loc := entities.Coordinates{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng}
		pois = append(pois, entities.NewPOI(r.PlaceID, entities.POI{
			Name:          r.Name,
			Location:      loc,
			Category:      query.Category,
			Rating:        r.Rating,
			DistanceKm:    geo.Round(geo.DistanceKm(query.Center.Latitude, query.Center.Longitude, loc.Latitude, loc.Longitude), 2),
			ReviewSummary: r.Vicinity,
			Source:        entities.POISourcePlaces,
		}))
	}

	return pois, nil
}

func (g *GooglePlacesProvider) doNearbySearch(ctx context.Context, query providers.PlacesQuery) (*googleNearbySearchResponse, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", query.Center.Latitude, query.Center.Longitude))
	params.Set("radius", strconv.Itoa(query.RadiusMeters))
	if query.ProviderType != "" {
		params.Set("type", query.ProviderType)
	}
	params.Set("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build places nearby search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places nearby search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providers.HTTPError{StatusCode: resp.StatusCode}
	}

	var payload googleNearbySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode places nearby search response: %w", err)
	}

	switch payload.Status {
	case "OK", "ZERO_RESULTS":
		return &payload, nil
	}
	return nil, &providers.APIError{
		StatusCode: resp.StatusCode,
		Status:     payload.Status,
		Message:    payload.ErrorMessage,
	}
}

// isRetryable retries transport failures, 429 and 5xx. Denied or invalid
// requests and cancelled contexts are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *providers.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == "UNKNOWN_ERROR"
	}
	return true
}

type googleNearbySearchResponse struct {
	Status       string                     `json:"status"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Results      []googleNearbySearchResult `json:"results"`
}

type googleNearbySearchResult struct {
	PlaceID  string         `json:"place_id"`
	Name     string         `json:"name"`
	Rating   float64        `json:"rating"`
	Vicinity string         `json:"vicinity"`
	Types    []string       `json:"types"`
	Geometry googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
