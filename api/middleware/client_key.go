package middleware

import (
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/bazarche-storefront/internal/users"
	"github.com/angelmondragon/bazarche-storefront/pkg/config"
)

// ClientKey keys login attempt counters by caller address when the key mode is
// config.LoginKeyIP. In constant mode every caller shares one counter.
// Forwarding headers only count when cfg.TrustProxy is set; otherwise the
// connection address is used so clients cannot pick their own key.
func ClientKey(cfg config.LoginRateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.KeyMode != config.LoginKeyIP {
			return next
		}
		keyed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := users.WithClientKey(r.Context(), clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		if cfg.TrustProxy {
			return chimw.RealIP(keyed)
		}
		return keyed
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
