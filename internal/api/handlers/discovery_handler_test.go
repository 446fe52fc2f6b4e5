package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/poidiscovery/internal/api/handlers"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	apperrors "github.com/zatekoja/poidiscovery/pkg/errors"
)

type mockDiscoverer struct {
	mock.Mock
}

func (m *mockDiscoverer) Discover(ctx context.Context, req entities.DiscoveryRequest) (*entities.DiscoveryResult, error) {
	args := m.Called(ctx, req)
	if r, ok := args.Get(0).(*entities.DiscoveryResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixedStats int

func (s fixedStats) Len() int { return int(s) }

func TestDiscoveryHandler_Discover_Success(t *testing.T) {
	discoverer := &mockDiscoverer{}
	handler := handlers.NewDiscoveryHandler(discoverer, nil)

	want := entities.DiscoveryRequest{
		Location:   entities.Coordinates{Latitude: 45.4979, Longitude: -121.8209},
		Category:   "attraction",
		Strategy:   entities.Strategy("hybrid"),
		MaxResults: 5,
	}
	discoverer.On("Discover", mock.Anything, want).Return(&entities.DiscoveryResult{
		POIs: []*entities.POI{
			entities.NewPOI("", entities.POI{Name: "Timberline Lodge", Rating: 4.7, Source: entities.POISourceLLM}),
		},
		StrategyUsed:   entities.StrategyHybrid,
		ResponseTimeMs: 42,
		Category:       "attraction",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pois/discover?lat=45.4979&lng=-121.8209&category=attraction&strategy=hybrid&max_results=5", nil)
	w := httptest.NewRecorder()

	handler.Discover(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body entities.DiscoveryResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.POIs, 1)
	assert.Equal(t, "Timberline Lodge", body.POIs[0].Name)
	assert.True(t, body.POIs[0].CouldEarnRevenue)
	assert.Equal(t, entities.StrategyHybrid, body.StrategyUsed)
	assert.Equal(t, int64(42), body.ResponseTimeMs)
	discoverer.AssertExpectations(t)
}

func TestDiscoveryHandler_Discover_MaxResultsIsCapped(t *testing.T) {
	discoverer := &mockDiscoverer{}
	handler := handlers.NewDiscoveryHandler(discoverer, nil)

	discoverer.On("Discover", mock.Anything, mock.MatchedBy(func(r entities.DiscoveryRequest) bool {
		return r.MaxResults == 50
	})).Return(&entities.DiscoveryResult{POIs: []*entities.POI{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pois/discover?lat=1&lng=2&max_results=500", nil)
	w := httptest.NewRecorder()

	handler.Discover(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	discoverer.AssertExpectations(t)
}

func TestDiscoveryHandler_Discover_BadQuery(t *testing.T) {
	cases := map[string]string{
		"missing lat":        "/api/pois/discover?lng=2",
		"missing lng":        "/api/pois/discover?lat=1",
		"non-numeric lat":    "/api/pois/discover?lat=north&lng=2",
		"non-numeric lng":    "/api/pois/discover?lat=1&lng=west",
		"zero max_results":   "/api/pois/discover?lat=1&lng=2&max_results=0",
		"garbage max_result": "/api/pois/discover?lat=1&lng=2&max_results=ten",
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			discoverer := &mockDiscoverer{}
			handler := handlers.NewDiscoveryHandler(discoverer, nil)

			w := httptest.NewRecorder()
			handler.Discover(w, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			discoverer.AssertNotCalled(t, "Discover", mock.Anything, mock.Anything)
		})
	}
}

func TestDiscoveryHandler_Discover_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "validation",
			err:     apperrors.NewValidationError("unknown discovery strategy \"FASTEST\""),
			status:  http.StatusBadRequest,
			message: "unknown discovery strategy \"FASTEST\"",
		},
		{
			name:    "source unavailable hides the cause",
			err:     apperrors.NewSourceUnavailableError("places", errors.New("REQUEST_DENIED: key=secret")),
			status:  http.StatusServiceUnavailable,
			message: "could not find places nearby",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			status:  http.StatusGatewayTimeout,
			message: "discovery timed out",
		},
		{
			name:    "anything else",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			discoverer := &mockDiscoverer{}
			discoverer.On("Discover", mock.Anything, mock.Anything).Return(nil, tc.err)
			handler := handlers.NewDiscoveryHandler(discoverer, nil)

			w := httptest.NewRecorder()
			handler.Discover(w, httptest.NewRequest(http.MethodGet, "/api/pois/discover?lat=1&lng=2", nil))

			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestDiscoveryHandler_CacheStats(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.NewDiscoveryHandler(&mockDiscoverer{}, fixedStats(3)).
		CacheStats(w, httptest.NewRequest(http.MethodGet, "/api/pois/cache/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(3), body["entries"])
	assert.Equal(t, true, body["available"])

	w = httptest.NewRecorder()
	handlers.NewDiscoveryHandler(&mockDiscoverer{}, nil).
		CacheStats(w, httptest.NewRequest(http.MethodGet, "/api/pois/cache/stats", nil))

	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["available"])
	assert.Nil(t, body["entries"])
}
