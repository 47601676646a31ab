package middleware

import (
	"net"
	"net/http"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/pkg/logging"
)

// RateLimit rejects a client IP with 429 once its window is used up. When the
// limiter itself fails the request is let through.
func RateLimit(limiter contracts.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logging.FromContext(r.Context()).WarnContext(r.Context(), "rate limit - allow failed, letting request through", logging.Err(err))
			}
			if !ok {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
