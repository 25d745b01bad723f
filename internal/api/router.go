package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aical-app/aical/internal/database"
	mw "github.com/aical-app/aical/internal/middleware"
	inats "github.com/aical-app/aical/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Assistant handlers
	Chat        http.HandlerFunc
	ClearChat   http.HandlerFunc
	Plan        http.HandlerFunc
	Parse       http.HandlerFunc
	Assistant   http.HandlerFunc
	AssistantWS http.HandlerFunc

	// Calendar handlers
	ListEvents  http.HandlerFunc
	CreateEvent http.HandlerFunc
	DeleteEvent http.HandlerFunc
	ExportICS   http.HandlerFunc

	// Auth middleware
	AuthMiddleware         func(http.Handler) http.Handler
	OptionalAuthMiddleware func(http.Handler) http.Handler
}

// Dependencies are the backing services probed by the readiness check.
// Nil entries are reported as not configured.
type Dependencies struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	NATS  *inats.Client
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	APIRateLimiter     func(http.Handler) http.Handler
}

func NewRouter(deps Dependencies, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200 with no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK
		degrade := func(component, state string) {
			health[component] = state
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if deps.Pool == nil {
			health["database"] = "not configured"
		} else if err := database.HealthCheck(r.Context(), deps.Pool); err != nil {
			degrade("database", "unhealthy")
		}

		if deps.Redis == nil {
			health["redis"] = "not configured"
		} else if err := deps.Redis.Ping(r.Context()).Err(); err != nil {
			degrade("redis", "unhealthy")
		}

		if deps.NATS == nil {
			health["nats"] = "not configured"
		} else if !deps.NATS.Healthy() {
			degrade("nats", "unhealthy")
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.APIRateLimiter != nil {
			r.Use(cfg.APIRateLimiter)
		}

		// Assistant routes: anonymous callers may chat, adds need a user.
		r.Group(func(r chi.Router) {
			if h.OptionalAuthMiddleware != nil {
				r.Use(h.OptionalAuthMiddleware)
			}
			r.Post("/chat", h.Chat)
			r.Delete("/chat", h.ClearChat)
			r.Post("/plan", h.Plan)
			r.Post("/parse", h.Parse)
			r.Post("/assistant", h.Assistant)
			r.Get("/assistant/ws", h.AssistantWS)
		})

		// Calendar routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Get("/events", h.ListEvents)
			r.Post("/events", h.CreateEvent)
			r.Delete("/events/{eventID}", h.DeleteEvent)
			r.Get("/events.ics", h.ExportICS)
		})
	})

	return r
}
