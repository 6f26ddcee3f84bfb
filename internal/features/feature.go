// Package features defines how domain features plug into the router and the
// migration step.
package features

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Feature is implemented by every domain package (reports, events,
// challenges, store).
type Feature interface {
	// ID names the feature in logs.
	ID() string

	// Models returns the GORM model pointers for AutoMigrate, in dependency order.
	Models() []interface{}

	// RegisterRoutes mounts citizen routes. The group is prefixed with /api
	// and has JWT middleware applied.
	RegisterRoutes(router fiber.Router)
}

// AdminFeature mounts additional routes on the /api/admin group, which has
// both JWT and admin middleware applied.
type AdminFeature interface {
	Feature
	RegisterAdminRoutes(router fiber.Router)
}

// AccountDataOwner deletes a user's rows when their account is removed.
type AccountDataOwner interface {
	DeleteUserData(tx *gorm.DB, userID uuid.UUID) error
}
