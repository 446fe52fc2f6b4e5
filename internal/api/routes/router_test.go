package routes_test

import (
	"bufio"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/poidiscovery/internal/adapters/events"
	"github.com/zatekoja/poidiscovery/internal/adapters/providers/inference"
	"github.com/zatekoja/poidiscovery/internal/adapters/providers/places"
	"github.com/zatekoja/poidiscovery/internal/api/handlers"
	"github.com/zatekoja/poidiscovery/internal/api/routes"
	"github.com/zatekoja/poidiscovery/internal/application/services"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	redisclient "github.com/zatekoja/poidiscovery/internal/infrastructure/clients/redis"
	"github.com/zatekoja/poidiscovery/pkg/clock"
)

func newTestServer(t *testing.T) (*httptest.Server, *services.MemoryDiscoveryCache) {
	t.Helper()

	cache := services.NewMemoryDiscoveryCache(clock.Real{})
	svc := services.NewPOIDiscoveryService(
		inference.NewMockInferenceProvider(),
		places.NewMockPlacesProvider(),
		cache,
		services.DefaultDiscoveryOptions(),
	)
	svc.SetParser(services.NewLLMPOIParser(rand.New(rand.NewPCG(1, 2))))

	router := routes.NewRouter(handlers.NewDiscoveryHandler(svc, cache), nil, nil, nil, nil)
	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv, cache
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_DiscoverEndToEnd(t *testing.T) {
	srv, cache := newTestServer(t)
	target := srv.URL + "/api/pois/discover?lat=45.4979&lng=-121.8209&category=attraction&strategy=HYBRID&max_results=10"

	fetch := func() entities.DiscoveryResult {
		resp, err := http.Get(target)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "private, max-age=300", resp.Header.Get("Cache-Control"))

		var result entities.DiscoveryResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		return result
	}

	first := fetch()
	second := fetch()

	require.NotEmpty(t, first.POIs)
	assert.LessOrEqual(t, len(first.POIs), 10)
	assert.Equal(t, entities.StrategyHybrid, first.StrategyUsed)
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	require.Len(t, second.POIs, len(first.POIs))
	for i := range first.POIs {
		assert.Equal(t, first.POIs[i].ID, second.POIs[i].ID)
	}
	assert.Equal(t, 1, cache.Len())

	resp, err := http.Get(srv.URL + "/api/pois/cache/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, float64(1), stats["entries"])
}

func TestRouter_InvalidStrategyIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/pois/discover?lat=45.4979&lng=-121.8209&strategy=FASTEST")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_AnalyticsRouteOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/analytics/fallbacks")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_DiscoveryEventStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClientWithOptions(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	bus := events.NewRedisEventBus(client)
	defer bus.Close()

	svc := services.NewPOIDiscoveryService(
		inference.NewMockInferenceProvider(),
		places.NewMockPlacesProvider(),
		nil,
		services.DefaultDiscoveryOptions(),
	)
	analytics := services.NewDiscoveryAnalyticsService(nil)
	analytics.SetEventBus(bus)
	svc.SetAnalytics(analytics)

	router := routes.NewRouter(handlers.NewDiscoveryHandler(svc, nil), nil, handlers.NewSSEHandler(bus), nil, nil)
	srv := httptest.NewServer(router.SetupRoutes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/pois/events/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	waitFor := func(want string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", want)
				if strings.HasPrefix(line, want) {
					return line
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: connected")

	discover, err := http.Get(srv.URL + "/api/pois/discover?lat=45.4979&lng=-121.8209&category=cafe&strategy=API_FIRST")
	require.NoError(t, err)
	discover.Body.Close()
	require.Equal(t, http.StatusOK, discover.StatusCode)

	waitFor("event: discovery")
	data := waitFor("data: ")

	var event entities.DiscoveryEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &event))
	assert.Equal(t, "cafe", event.Category)
	assert.Equal(t, entities.StrategyAPIFirst, event.StrategyUsed)
	assert.NotEmpty(t, event.ID)
}
