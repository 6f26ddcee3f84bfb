package store

import (
	"errors"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func (h *Handler) Items(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	resp, err := h.service.Items(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to load store")
	}
	return c.JSON(resp)
}

func (h *Handler) Purchases(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	limit, offset := session.ClampPage(c.QueryInt("limit", 50), c.QueryInt("offset", 0), 100)
	purchases, total, err := h.service.Purchases(c.UserContext(), userID, limit, offset)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load purchases")
	}
	return c.JSON(dto.PaginatedResponse{Data: purchases, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) Purchase(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil || req.ItemID == "" {
		return fail(c, fiber.StatusBadRequest, "item_id is required")
	}

	resp, err := h.service.Purchase(c.UserContext(), userID, req.ItemID, c.Get("Idempotency-Key"))
	if err != nil {
		var short *InsufficientPointsError
		switch {
		case errors.As(err, &short):
			return fail(c, fiber.StatusPaymentRequired, short.Error())
		case errors.Is(err, ErrItemNotFound):
			return fail(c, fiber.StatusNotFound, "Item not found")
		case errors.Is(err, ErrAlreadyOwned):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrIdempotencyKeyConflict):
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrIdempotencyKeyTooLong):
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, "Purchase failed")
	}

	if resp.Replayed {
		return c.JSON(resp)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) SelectTheme(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req dto.SelectThemeRequest
	if err := c.BodyParser(&req); err != nil || req.ThemeID == "" {
		return fail(c, fiber.StatusBadRequest, "theme_id is required")
	}

	user, err := h.service.SelectTheme(c.UserContext(), userID, req.ThemeID)
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound), errors.Is(err, services.ErrUserNotFound):
			return fail(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotATheme):
			return fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrThemeNotOwned):
			return fail(c, fiber.StatusForbidden, err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to update theme")
	}
	return c.JSON(services.ToUserResponse(user))
}
