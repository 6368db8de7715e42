package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/api/middleware"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/config"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/handlers"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/hub"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, dataStore store.DataStore, redisStore *store.RedisStore, chatHub *hub.Hub, gateway *hub.Gateway, verifier *token.Verifier) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (no-op without Redis)
	limiter := middleware.NewRateLimiter(redisStore, cfg.RateLimitPerMinute, logger)
	r.Use(limiter.Middleware)

	// CORS - the UI collaborator calls from a browser origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(dataStore, chatHub, redisStore, logger)
	auth := middleware.NewAuthMiddleware(verifier)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Live gateway: credential travels in the handshake frame, not a header
	r.Get("/ws", gateway.HandleWS)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/chats/create-or-get", h.CreateOrGetChat)
		r.Get("/chats/{chatID}/messages", h.GetMessages)
		r.Post("/chats/{chatID}/messages", h.SendMessage)
		r.Delete("/chats/{chatID}", h.DeleteChat)
		r.Get("/presence/{userID}", h.GetPresence)
	})

	return r
}
