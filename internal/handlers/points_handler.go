package handlers

import (
	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/gofiber/fiber/v2"
)

type PointsHandler struct {
	points *services.PointsService
}

func NewPointsHandler(points *services.PointsService) *PointsHandler {
	return &PointsHandler{points: points}
}

func (h *PointsHandler) Balance(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	balance, err := h.points.Balance(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load balance",
		})
	}
	return c.JSON(balance)
}

func (h *PointsHandler) History(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	limit, offset := session.ClampPage(c.QueryInt("limit", 50), c.QueryInt("offset", 0), 100)

	entries, total, err := h.points.History(c.UserContext(), userID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load history",
		})
	}
	return c.JSON(dto.PaginatedResponse{Data: entries, Total: total, Limit: limit, Offset: offset})
}

func (h *PointsHandler) Leaderboard(c *fiber.Ctx) error {
	entries, err := h.points.Leaderboard(c.UserContext(), c.QueryInt("limit", services.DefaultLeaderboardLimit))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load leaderboard",
		})
	}
	return c.JSON(fiber.Map{"data": entries})
}

func (h *PointsHandler) MyRank(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	rank, err := h.points.Rank(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load rank",
		})
	}
	return c.JSON(rank)
}
