package store

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

func (f *Feature) ID() string { return "store" }

func (f *Feature) Models() []interface{} {
	return []interface{}{&Purchase{}}
}

func (f *Feature) RegisterRoutes(router fiber.Router) {
	h := f.handler

	router.Get("/store/items", h.Items)
	router.Get("/store/purchases", h.Purchases)
	router.Post("/store/purchases", h.Purchase)
	router.Put("/me/theme", h.SelectTheme)
}

func (f *Feature) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return f.service.DeleteUserData(tx, userID)
}
