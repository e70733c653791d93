package middleware

import (
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/credkit"
)

// RateLimitMessage is the body of a 429 response.
const RateLimitMessage = "Rate limit exceeded. Please try again in a minute."

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(*http.Request) string

// RateLimit answers 429 once a client exceeds the engine's request ceiling.
// Requests are keyed by ClientIP unless keyFn is given. A limiter backend
// failure lets the request through.
//
// The client address is also attached to the request context for audit
// events.
func RateLimit(engine *credkit.Engine, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := credkit.WithClientIP(r.Context(), ClientIP(r))
			r = r.WithContext(ctx)

			if engine != nil {
				err := engine.CheckRateLimit(ctx, keyFn(r))
				if errors.Is(err, credkit.ErrRateLimited) {
					w.Header().Set("Retry-After", "60")
					http.Error(w, RateLimitMessage, http.StatusTooManyRequests)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
