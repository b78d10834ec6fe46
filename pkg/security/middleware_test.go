package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestOpenModeAllowsUnauthenticated(t *testing.T) {
	h := Middleware(SecConfig{})(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestKeyedModeRejectsMissingKey(t *testing.T) {
	cfg := SecConfig{BackendKeys: map[string]struct{}{"sk-back": {}}}
	h := Middleware(cfg)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKeyedModeAcceptsBearerAndHeader(t *testing.T) {
	cfg := SecConfig{
		BackendKeys:  map[string]struct{}{"sk-back": {}},
		FrontendKeys: map[string]struct{}{"sk-front": {}},
	}
	h := Middleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer sk-back")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-API-Key", "sk-front")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-API-Key", "sk-wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzExemptFromAuth(t *testing.T) {
	cfg := SecConfig{BackendKeys: map[string]struct{}{"sk-back": {}}}
	h := Middleware(cfg)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	cfg := SecConfig{AllowedOrigins: []string{"https://app.example.com"}}
	h := Middleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// disallowed origins get no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitKicksIn(t *testing.T) {
	cfg := SecConfig{RPS: 1, Burst: 1}
	h := Middleware(cfg)(okHandler())

	got429 := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
		}
	}
	require.True(t, got429)
}
