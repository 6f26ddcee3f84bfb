package events

import (
	"errors"

	"github.com/cleanupghent/cleanup-backend/internal/services"
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

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": true, "message": message})
}

func (h *Handler) serviceError(c *fiber.Ctx, err error, fallback string) error {
	var rejection *services.ContentRejection
	switch {
	case errors.As(err, &rejection):
		return fail(c, fiber.StatusUnprocessableEntity, rejection.Message())
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrParticipantNotFound), errors.Is(err, ErrNotJoined):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrEventFull), errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrEventClosed):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrLocationRequired),
		errors.Is(err, ErrEventDateInPast),
		errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, ErrInvalidCapacity),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidParticipant):
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return fail(c, fiber.StatusInternalServerError, fallback)
}

func eventID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

func (h *Handler) List(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	events, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load events")
	}
	return c.JSON(fiber.Map{"data": events})
}

func (h *Handler) Detail(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	detail, err := h.service.Detail(c.UserContext(), userID, id)
	if err != nil {
		return h.serviceError(c, err, "Failed to load event")
	}
	return c.JSON(detail)
}

func (h *Handler) Join(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	count, err := h.service.Join(c.UserContext(), userID, id)
	if err != nil {
		return h.serviceError(c, err, "Failed to join event")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"joined": true, "participants_count": count})
}

func (h *Handler) Leave(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	count, err := h.service.Leave(c.UserContext(), userID, id)
	if err != nil {
		return h.serviceError(c, err, "Failed to leave event")
	}
	return c.JSON(fiber.Map{"joined": false, "participants_count": count})
}

// --- Admin handlers ---

func (h *Handler) Create(c *fiber.Ctx) error {
	adminID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	event, err := h.service.Create(c.UserContext(), adminID, &req)
	if err != nil {
		return h.serviceError(c, err, "Failed to create event")
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

func (h *Handler) AdminList(c *fiber.Ctx) error {
	events, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load events")
	}
	return c.JSON(fiber.Map{"data": events})
}

func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	event, err := h.service.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return h.serviceError(c, err, "Failed to update event")
	}
	return c.JSON(event)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.serviceError(c, err, "Failed to delete event")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) SetParticipantStatus(c *fiber.Ctx) error {
	id, err := eventID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event ID")
	}
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	participant, err := h.service.SetParticipantStatus(c.UserContext(), id, userID, req.Status)
	if err != nil {
		return h.serviceError(c, err, "Failed to update participant")
	}
	return c.JSON(participant)
}
