package middleware

import (
	"errors"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected accepts HS256 access tokens from the Authorization header.
// The mobile app refreshes on any 401, so a missing header gets its own
// message to tell a signed-out client apart from an expired session.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			message := "Unauthorized: invalid or expired token"
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				message = "Unauthorized: missing bearer token"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: message,
			})
		},
	})
}
