package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/aical-app/aical/internal/api"
	"github.com/aical-app/aical/internal/assistant"
	"github.com/aical-app/aical/internal/auth"
	"github.com/aical-app/aical/internal/calendar"
	"github.com/aical-app/aical/internal/config"
	"github.com/aical-app/aical/internal/database"
	"github.com/aical-app/aical/internal/gemini"
	"github.com/aical-app/aical/internal/memory"
	mw "github.com/aical-app/aical/internal/middleware"
	inats "github.com/aical-app/aical/internal/nats"
	iredis "github.com/aical-app/aical/internal/redis"
	"github.com/aical-app/aical/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *inats.Client
	var notifier calendar.Notifier
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		notifier = inats.NewPublisher(natsClient.JetStream())
	}

	// Session memory
	store, stopSweeper, err := newSessionStore(cfg.Memory, redisClient)
	if err != nil {
		slog.Error("creating session store", "error", err)
		os.Exit(1)
	}
	defer stopSweeper()

	// Language model
	model := gemini.NewClient(cfg.Gemini.APIKey,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithTimeout(cfg.Gemini.Timeout),
	)

	// Calendar
	calendarSvc := calendar.NewService(calendar.NewRepository(pool), notifier)
	calendarHandler := calendar.NewHandler(calendarSvc)

	// Assistant
	assistantSvc := assistant.NewService(store, model,
		assistant.WithTurnLimits(cfg.Memory.MaxTurns, cfg.Memory.PlanTurns),
		assistant.WithLocation(cfg.Calendar.Location()),
		assistant.WithDefaultDuration(cfg.Calendar.DefaultDuration),
	)
	orchestrator := assistant.NewOrchestrator(assistantSvc)
	assistantHandler := assistant.NewHandler(assistantSvc, orchestrator, calendarSvc, cfg.CORS.AllowedOrigins)

	// Auth
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	rateLimiter := mw.NewRateLimiter(redisClient, "api", cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSec)

	// Router
	router := api.NewRouter(
		api.Dependencies{Pool: pool, Redis: redisClient, NATS: natsClient},
		api.RouterConfig{
			CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
			APIRateLimiter:     rateLimiter.Middleware,
		},
		api.HandlerSet{
			Chat:        assistantHandler.Chat,
			ClearChat:   assistantHandler.ClearChat,
			Plan:        assistantHandler.Plan,
			Parse:       assistantHandler.Parse,
			Assistant:   assistantHandler.Assistant,
			AssistantWS: assistantHandler.AssistantWS,

			ListEvents:  calendarHandler.List,
			CreateEvent: calendarHandler.Create,
			DeleteEvent: calendarHandler.Delete,
			ExportICS:   calendarHandler.ExportICS,

			AuthMiddleware:         auth.Middleware(verifier),
			OptionalAuthMiddleware: auth.OptionalMiddleware(verifier),
		},
	)

	// Start server
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, router)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newSessionStore picks the chat history backend. The in-memory store gets
// a background sweeper for idle sessions; Redis expires keys itself.
func newSessionStore(cfg config.MemoryConfig, client *redis.Client) (memory.Store, func(), error) {
	if cfg.Backend == config.MemoryBackendRedis {
		slog.Info("using redis session store", "ttl", cfg.SessionTTL)
		return memory.NewRedisStore(client, cfg.MaxTurns, cfg.SessionTTL), func() {}, nil
	}

	store := memory.NewInMemoryStore(
		memory.WithMaxLen(cfg.MaxTurns),
		memory.WithTTL(cfg.SessionTTL),
	)
	stop, err := store.StartSweeper(cfg.SweepSchedule)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using in-memory session store", "ttl", cfg.SessionTTL, "sweep", cfg.SweepSchedule)
	return store, stop, nil
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
