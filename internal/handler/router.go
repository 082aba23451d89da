package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/pkg/logger"
)

// RouterConfig carries the handlers and HTTP settings of the API.
type RouterConfig struct {
	Logger   *logger.Logger
	Resolver middleware.Resolver

	JWTSecret          string
	JWTIssuer          string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string

	Health        *HealthHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Presence      *PresenceHandler
	Notifications *NotificationHandler
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LimitBody(middleware.MaxBodyBytes))
		r.Use(middleware.Auth(cfg.JWTSecret, cfg.JWTIssuer))
		r.Use(middleware.Identity(cfg.Resolver, cfg.Logger))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Post("/sync", cfg.Users.Sync)
			r.Get("/me", cfg.Users.Me)
			r.Get("/{id}", cfg.Users.Get)
		})

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", cfg.Conversations.Create)
			r.Get("/", cfg.Conversations.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)

				// Messages
				r.Get("/messages", cfg.Messages.List)
				r.Post("/messages", cfg.Messages.Send)
				r.Post("/read", cfg.Messages.Read)
			})
		})
		r.Get("/messages/unread-count", cfg.Messages.UnreadCount)

		// Presence
		r.Get("/online-status", cfg.Presence.Get)
		r.Post("/online-status", cfg.Presence.Set)

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.Notifications.List)
			r.Post("/read", cfg.Notifications.MarkRead)
			r.Get("/unread-count", cfg.Notifications.UnreadCount)
		})
	})

	return r
}
