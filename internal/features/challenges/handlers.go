package challenges

import (
	"errors"

	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) sync(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": true, "message": "Unauthorized"})
	}
	rows, err := h.service.Sync(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": "Failed to load challenges"})
	}
	if rows == nil {
		rows = []UserChallenge{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

// List syncs before answering so progress is never stale.
func (h *Handler) List(c *fiber.Ctx) error { return h.sync(c) }

func (h *Handler) Sync(c *fiber.Ctx) error { return h.sync(c) }

func (h *Handler) Claim(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": true, "message": "Unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "Invalid challenge ID"})
	}

	resp, err := h.service.Claim(c.UserContext(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrChallengeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": err.Error()})
		case errors.Is(err, ErrNotClaimable), errors.Is(err, ErrAlreadyClaimed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": true, "message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": "Failed to claim reward"})
	}
	return c.JSON(resp)
}

func (h *Handler) AdminList(c *fiber.Ctx) error {
	all, err := h.service.ListDefinitions(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": "Failed to load challenges"})
	}
	return c.JSON(fiber.Map{"data": all})
}
