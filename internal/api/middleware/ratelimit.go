package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
)

const rateLimitWindow = time.Minute

// RateLimiter enforces a fixed-window request limit per client IP, counted
// in Redis so the limit survives restarts.
type RateLimiter struct {
	redis     *store.RedisStore
	perMinute int
	logger    zerolog.Logger
}

// NewRateLimiter creates a rate limiter. A nil redis store disables
// limiting.
func NewRateLimiter(redis *store.RedisStore, perMinute int, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{redis: redis, perMinute: perMinute, logger: logger}
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.redis == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP middleware has already resolved the client address.
		count, err := rl.redis.IncrRequestCount(r.Context(), r.RemoteAddr, rateLimitWindow)
		if err != nil {
			// Redis being down must not take the API with it.
			rl.logger.Warn().Err(err).Msg("rate limit counter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
		remaining := rl.perMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.perMinute {
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			rl.logger.Warn().
				Str("remote_addr", r.RemoteAddr).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]map[string]string{
				"error": {"kind": "unavailable", "message": "rate limit exceeded"},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
