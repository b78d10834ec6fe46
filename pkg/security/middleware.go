package security

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"atelier/pkg/logger"
)

// Role classifies an authenticated caller.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
)

// SecConfig drives the request middleware: CORS allow-list, per-caller rate
// limits and API key sets. With no keys configured at all the middleware
// runs open (local development); otherwise every request needs a key.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
}

func (c SecConfig) open() bool {
	return len(c.BackendKeys) == 0 && len(c.FrontendKeys) == 0
}

// Middleware authenticates requests, applies CORS headers and rate limits
// callers keyed by API key (or remote IP when unauthenticated).
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// deployment probes cannot carry keys
			if r.URL.Path == "/healthz" && r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			role, key := authenticate(r, cfg)
			if role == RoleUnauth && !cfg.open() {
				logger.Log.Warn("request_unauthorized",
					zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if key == "" {
				key = clientIP(r)
			}
			if cfg.RPS > 0 && !limiters.Allow(key) {
				logger.Log.Warn("rate_limited", zap.String("path", r.URL.Path))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate prefers Authorization: Bearer <key> and falls back to
// X-API-Key.
func authenticate(r *http.Request, cfg SecConfig) (Role, string) {
	var key string
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return RoleUnauth, ""
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key
	}
	return RoleUnauth, key
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}
	return r.RemoteAddr
}
