package reports

import (
	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Feature struct {
	service *Service
	handler *Handler
}

func New(service *Service, registry *catalog.Registry, cfg *config.Config) *Feature {
	return &Feature{service: service, handler: NewHandler(service, registry, cfg)}
}

func (f *Feature) ID() string { return "reports" }

func (f *Feature) Models() []interface{} {
	return []interface{}{&TrashReport{}}
}

func (f *Feature) RegisterRoutes(router fiber.Router) {
	h := f.handler

	router.Post("/reports", h.Submit)
	router.Get("/reports/mine", h.ListMine)
	router.Get("/reports/map", h.Map)
	router.Get("/reports/:id", h.Get)
	router.Get("/bins", h.Bins)
}

func (f *Feature) RegisterAdminRoutes(router fiber.Router) {
	h := f.handler

	router.Get("/reports", h.AdminList)
	router.Put("/reports/:id", h.Review)
}

func (f *Feature) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return f.service.DeleteUserData(tx, userID)
}
