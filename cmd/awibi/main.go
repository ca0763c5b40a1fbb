package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/app"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/auth"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/badges"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/chapters"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/events"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/observability"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/cache"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/db"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/ratelimit"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/security"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := authz.ValidateCatalog(); err != nil {
		logger.Error("permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "awibi_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFTokenBytes)
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)

	usersRepo := users.NewRepository(dbpool)
	chaptersRepo := chapters.NewRepository(dbpool)
	eventsRepo := events.NewRepository(dbpool)
	badgesRepo := badges.NewRepository(dbpool)

	guard := auth.NewGuard(usersRepo, auth.LockoutPolicy{
		MaxAttempts:  cfg.MaxLoginAttempts,
		LockDuration: cfg.LockoutDuration,
	})
	authService := auth.NewService(usersRepo, guard, tokens)
	resolver := auth.NewResolver(tokens, usersRepo, logger)
	engine := authz.NewEngine(chaptersRepo, logger)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	sink := jobs.NewSecurityEventSink(jobClient, metrics, logger)
	watcher := security.NewWatcher(logger, sink, "/api/v1/auth/")

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient, "ratelimit"), logger)

	mailer := jobs.NewAuthMailer(jobClient, cfg.PublicBaseURL)

	authHandler := auth.NewHandler(logger, authService, sessionManager, mailer, cfg.IsDevelopment())
	usersHandler := users.NewHandler(logger, users.NewService(usersRepo), engine)
	chaptersHandler := chapters.NewHandler(logger, chapters.NewService(chaptersRepo), engine)
	eventsHandler := events.NewHandler(logger, eventsRepo, engine)
	badgesHandler := badges.NewHandler(logger, badgesRepo, engine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Resolver:       resolver,
		Engine:         engine,
		Limiter:        limiter,
		Policies:       app.PoliciesFromConfig(cfg),
		Watcher:        watcher,
		Metrics:        metrics,

		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		ChaptersHandler: chaptersHandler,
		EventsHandler:   eventsHandler,
		BadgesHandler:   badgesHandler,
		JobsHandler:     jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
