package routes

import (
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/features"
	"github.com/cleanupghent/cleanup-backend/internal/handlers"
	"github.com/cleanupghent/cleanup-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Health  *handlers.HealthHandler
	Legal   *handlers.LegalHandler
	Config  *handlers.RemoteConfigHandler
	Profile *handlers.ProfileHandler
	Points  *handlers.PointsHandler
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	h Handlers,
	registry *prometheus.Registry,
	feats []features.Feature,
) {
	// Prometheus scrape endpoint, outside the rate-limited API
	if registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// Locally stored media
	if cfg.StorageDriver == "local" {
		app.Static("/uploads", cfg.UploadDir, fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)
	api.Get("/config", h.Config.GetConfig)
	api.Get("/legal/privacy", h.Legal.PrivacyPolicy)
	api.Get("/legal/terms", h.Legal.TermsOfService)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	// JWT is applied per route here so the public /auth group above stays open
	api.Post("/auth/logout", middleware.JWTProtected(cfg), h.Auth.Logout)
	api.Delete("/auth/account", middleware.JWTProtected(cfg), h.Auth.DeleteAccount)

	// Admin panel (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/users", h.Profile.ListUsers)
	admin.Get("/config", h.Config.ListConfig)
	admin.Put("/config/:key", h.Config.SetConfigKey)
	admin.Delete("/config/:key", h.Config.DeleteConfigKey)

	// Everything registered below this point requires a valid access token
	protected := api.Group("", middleware.JWTProtected(cfg))
	protected.Get("/me", h.Profile.Me)
	protected.Put("/me", h.Profile.Update)
	protected.Get("/points", h.Points.Balance)
	protected.Get("/points/history", h.Points.History)
	protected.Get("/leaderboard", h.Points.Leaderboard)
	protected.Get("/leaderboard/me", h.Points.MyRank)

	for _, f := range feats {
		f.RegisterRoutes(protected)
		if af, ok := f.(features.AdminFeature); ok {
			af.RegisterAdminRoutes(admin)
		}
	}
}
