package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. The key is the connection's remote
// address; forwarded headers only count once RealIP rewrote it. Uses a sliding window algorithm.
// Requests over the limit get a JSON 429.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return RateLimitWith(requestsPerMinute, func(w http.ResponseWriter, r *http.Request) {
		writeAuthError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	})
}

// RateLimitWith is RateLimit with a custom response for limited requests,
// used by the HTML forms. A non-positive limit disables limiting.
func RateLimitWith(requestsPerMinute int, limited http.HandlerFunc) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limited),
	)
}
