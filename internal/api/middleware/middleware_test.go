package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func TestCORSMiddleware_ConfiguredOrigins(t *testing.T) {
	handler := CORSMiddleware([]string{"https://maps.example.com", " https://app.example.com "})(okHandler(`{}`))

	req := httptest.NewRequest(http.MethodGet, "/api/pois/discover", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/api/pois/discover", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_WildcardAndPreflight(t *testing.T) {
	called := false
	handler := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/pois/discover", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestCacheControl_ByPath(t *testing.T) {
	handler := CacheControl(okHandler(`{}`))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pois/discover?lat=1&lng=2", nil))
	assert.Equal(t, "private, max-age=300", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pois/cache/stats", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCompression_GzipWhenAccepted(t *testing.T) {
	handler := Compression(okHandler(`{"pois":[]}`))

	req := httptest.NewRequest(http.MethodGet, "/api/pois/discover", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `{"pois":[]}`, string(body))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pois/discover", nil))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"pois":[]}`, w.Body.String())
}

func TestObservabilityAndLogging_CaptureStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pois/discover", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	metrics, err := observability.InitMetrics()
	require.NoError(t, err)
	handler := ObservabilityMiddleware(metrics)(LoggingMiddleware(mux))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pois/discover", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
