package middleware

import (
	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminRequired admits a request when any of these hold:
// 1. X-Admin-Token matches ADMIN_TOKEN
// 2. the token's email or subject is in ADMIN_EMAILS / ADMIN_USER_IDS
// 3. the profile row has role admin
//
// The role claim alone is not trusted; a demoted user keeps a valid access
// token until it expires.
func AdminRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken {
			return c.Next()
		}

		userID, err := session.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if cfg.IsAdminEmail(session.GetEmail(c)) || cfg.IsAdminUserID(userID.String()) {
			return c.Next()
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).Select("id", "role").First(&user, "id = ?", userID).Error; err == nil {
			if user.IsAdmin() {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}
