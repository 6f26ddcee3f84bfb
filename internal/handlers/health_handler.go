package handlers

import (
	"context"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/cache"
	"github.com/cleanupghent/cleanup-backend/internal/database"
	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler reports the cache as "disabled" when redisClient is nil.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"

	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	cacheStatus := "disabled"
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		cacheStatus = "ok"
		if err := cache.Ping(ctx, h.redis); err != nil {
			cacheStatus = "unhealthy: " + err.Error()
			status = "degraded"
		}
	}

	code := fiber.StatusOK
	if dbStatus != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Cache:     cacheStatus,
	})
}
