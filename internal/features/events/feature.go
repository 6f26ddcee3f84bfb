package events

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

func (f *Feature) ID() string { return "events" }

func (f *Feature) Models() []interface{} {
	return []interface{}{
		&Event{},
		&EventParticipant{},
	}
}

func (f *Feature) RegisterRoutes(router fiber.Router) {
	h := f.handler

	router.Get("/events", h.List)
	router.Get("/events/:id", h.Detail)
	router.Post("/events/:id/join", h.Join)
	router.Delete("/events/:id/join", h.Leave)
}

func (f *Feature) RegisterAdminRoutes(router fiber.Router) {
	h := f.handler

	router.Post("/events", h.Create)
	router.Get("/events", h.AdminList)
	router.Put("/events/:id/status", h.UpdateStatus)
	router.Delete("/events/:id", h.Delete)
	router.Put("/events/:id/participants/:user_id", h.SetParticipantStatus)
}

func (f *Feature) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return f.service.DeleteUserData(tx, userID)
}
