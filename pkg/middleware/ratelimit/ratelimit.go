package ratelimit

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shortlink/pkg/middleware"
	"golang.org/x/time/rate"
)

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a middleware sharing a single token bucket of rps requests per
// second with the given burst across all clients. A non-positive rps disables
// limiting.
func New(rps float64, burst int) middleware.Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	if burst <= 0 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, errorResponse{Error: "too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
