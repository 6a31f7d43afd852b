package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

const (
	requestIDHeader     = "X-Request-Id"
	correlationIDHeader = "X-Correlation-Id"
)

// RequestID tags the request with a uuid taken from the caller when it is
// well formed, otherwise freshly generated, and echoes it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := incomingRequestID(r)
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func incomingRequestID(r *http.Request) string {
	for _, header := range []string{requestIDHeader, correlationIDHeader} {
		if parsed, err := uuid.Parse(r.Header.Get(header)); err == nil {
			return parsed.String()
		}
	}
	return uuid.NewString()
}
