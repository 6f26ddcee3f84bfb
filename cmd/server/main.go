package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cleanupghent/cleanup-backend/internal/cache"
	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/database"
	"github.com/cleanupghent/cleanup-backend/internal/features"
	"github.com/cleanupghent/cleanup-backend/internal/features/challenges"
	"github.com/cleanupghent/cleanup-backend/internal/features/events"
	"github.com/cleanupghent/cleanup-backend/internal/features/reports"
	"github.com/cleanupghent/cleanup-backend/internal/features/store"
	"github.com/cleanupghent/cleanup-backend/internal/handlers"
	"github.com/cleanupghent/cleanup-backend/internal/live"
	"github.com/cleanupghent/cleanup-backend/internal/logging"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/middleware"
	"github.com/cleanupghent/cleanup-backend/internal/notify"
	"github.com/cleanupghent/cleanup-backend/internal/routes"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/storage"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

const appName = "Cleanup Ghent"

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Catalog: store items, challenge definitions, trash bins
	registry, err := catalog.LoadFromFile(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded",
		"items", len(registry.Items()),
		"challenges", len(registry.Challenges()),
		"bins", len(registry.Bins()),
	)

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	db := database.DB

	if err := database.MigrateShared(db); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdoutHandler, pgLogHandler)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Tracing
	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "cleanup-backend",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.AppEnv,
		ExporterType: cfg.OTelExporter,
		OTLPEndpoint: cfg.OTelEndpoint,
		SamplingRate: cfg.OTelSamplingRate,
		Insecure:     cfg.AppEnv != "production",
	})
	if err != nil {
		slog.Error("tracing init failed", "error", err)
		os.Exit(1)
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New()
	if err := appMetrics.Register(promRegistry); err != nil {
		slog.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	// Live updates
	hub := live.NewHub(cfg, appMetrics)
	go hub.Run()
	liveServer := live.NewServer(":"+cfg.LivePort, hub)
	go func() {
		slog.Info("live server starting", "port", cfg.LivePort)
		if err := liveServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("live server failed", "error", err)
		}
	}()

	// Leaderboard cache (optional)
	var redisClient *redis.Client
	var leaderboardCache services.LeaderboardCache
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, leaderboard cache disabled", "error", err)
			redisClient = nil
		} else {
			leaderboardCache = cache.NewLeaderboard(redisClient, cfg.LeaderboardCacheTTL)
		}
	}

	// Media storage
	mediaStore, err := storage.New(cfg)
	if err != nil {
		slog.Error("storage init failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	// Admin notifications
	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			slog.Warn("telegram notifier disabled", "error", err)
		} else {
			notifier = tg
		}
	}

	// Services
	pointsService := services.NewPointsService(db, leaderboardCache, hub)
	filter := services.NewContentFilter()
	authService := services.NewAuthService(db, cfg, pointsService)
	profileService := services.NewProfileService(db, cfg, pointsService, filter)

	challengeService := challenges.NewService(db, cfg, pointsService, appMetrics)
	reportService := reports.NewService(db, cfg, reports.Deps{
		Points:     pointsService,
		Storage:    mediaStore,
		Filter:     filter,
		Notifier:   notifier,
		Publisher:  hub,
		Metrics:    appMetrics,
		Challenges: challengeService,
	})
	eventService := events.NewService(db, filter, hub, appMetrics)
	storeService := store.NewService(db, registry, pointsService, appMetrics)

	feats := []features.Feature{
		reports.New(reportService, registry, cfg),
		events.New(eventService),
		challenges.New(challengeService),
		store.New(storeService),
	}

	// Migrate feature models
	for _, f := range feats {
		if models := f.Models(); len(models) > 0 {
			if err := database.MigrateModels(db, models); err != nil {
				slog.Error("feature migration failed", "feature", f.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("feature migrated", "feature", f.ID(), "models", len(models))
		}
		if owner, ok := f.(features.AccountDataOwner); ok {
			authService.OnDeleteAccount(owner.DeleteUserData)
		}
	}

	if err := challengeService.SeedDefinitions(context.Background(), registry.Challenges()); err != nil {
		slog.Error("challenge seeding failed", "error", err)
		os.Exit(1)
	}

	// Handlers
	configHandler := handlers.NewRemoteConfigHandler(db)
	slog.Info("seeding remote config defaults")
	if err := configHandler.SeedDefaults(appName, cfg.PointsPerVerifiedReport); err != nil {
		slog.Error("remote config seeding failed", "error", err)
	}

	h := routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		Health:  handlers.NewHealthHandler(db, redisClient),
		Legal:   handlers.NewLegalHandler(appName, "privacy@cleanupghent.be"),
		Config:  configHandler,
		Profile: handlers.NewProfileHandler(profileService),
		Points:  handlers.NewPointsHandler(pointsService),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app; multipart reports carry a media file plus an optional after image
	app := fiber.New(fiber.Config{
		BodyLimit:    int(2*cfg.MaxUploadBytes()) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.HTTPMetrics(appMetrics))

	routes.Setup(app, cfg, db, h, promRegistry, feats)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := liveServer.Shutdown(ctx); err != nil {
		slog.Error("live server shutdown error", "error", err)
	}
	hub.Stop()

	if err := tracer.Shutdown(ctx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
