package challenges

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Feature struct {
	service *Service
	handler *Handler
}

func New(service *Service) *Feature {
	return &Feature{service: service, handler: NewHandler(service)}
}

func (f *Feature) ID() string { return "challenges" }

func (f *Feature) Models() []interface{} {
	return []interface{}{
		&Challenge{},
		&UserChallenge{},
	}
}

func (f *Feature) RegisterRoutes(router fiber.Router) {
	h := f.handler

	router.Get("/challenges", h.List)
	router.Post("/challenges/sync", h.Sync)
	router.Post("/challenges/:id/claim", h.Claim)
}

func (f *Feature) RegisterAdminRoutes(router fiber.Router) {
	router.Get("/challenges", f.handler.AdminList)
}

func (f *Feature) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return f.service.DeleteUserData(tx, userID)
}
