package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RemoteConfigHandler struct {
	db *gorm.DB
}

func NewRemoteConfigHandler(db *gorm.DB) *RemoteConfigHandler {
	return &RemoteConfigHandler{db: db}
}

// GetConfig returns every key with its value decoded by type (public).
func (h *RemoteConfigHandler) GetConfig(c *fiber.Ctx) error {
	result, err := h.Values()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to fetch configuration",
		})
	}
	return c.JSON(result)
}

// ListConfig returns the raw rows (admin only).
func (h *RemoteConfigHandler) ListConfig(c *fiber.Ctx) error {
	var configs []models.RemoteConfig
	if err := h.db.WithContext(c.UserContext()).Order("key ASC").Find(&configs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to fetch configuration",
		})
	}
	return c.JSON(fiber.Map{"data": configs})
}

func validValue(typ, value string) bool {
	switch typ {
	case "string":
		return true
	case "bool":
		_, err := strconv.ParseBool(value)
		return err == nil
	case "int":
		_, err := strconv.Atoi(value)
		return err == nil
	case "json":
		return json.Valid([]byte(value))
	}
	return false
}

// SetConfigKey sets or updates a config key (admin only)
func (h *RemoteConfigHandler) SetConfigKey(c *fiber.Ctx) error {
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Key parameter is required",
		})
	}

	var payload struct {
		Value string `json:"value"`
		Type  string `json:"type"` // string, bool, int, json
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Invalid request body",
		})
	}
	if payload.Type == "" {
		payload.Type = "string"
	}
	if !validValue(payload.Type, payload.Value) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Value does not match type " + payload.Type,
		})
	}

	config := models.RemoteConfig{Key: key, Value: payload.Value, Type: payload.Type}
	err := h.db.WithContext(c.UserContext()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&config).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to save config",
		})
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Config updated successfully",
		"config": fiber.Map{
			"key":   config.Key,
			"value": config.Value,
			"type":  config.Type,
		},
	})
}

// DeleteConfigKey deletes a config key (admin only)
func (h *RemoteConfigHandler) DeleteConfigKey(c *fiber.Ctx) error {
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Key parameter is required",
		})
	}

	result := h.db.WithContext(c.UserContext()).Where("key = ?", key).Delete(&models.RemoteConfig{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to delete config",
		})
	}

	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Config not found",
		})
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Config deleted successfully",
	})
}

// SeedDefaults inserts the keys the mobile client expects. Existing values
// are left untouched.
func (h *RemoteConfigHandler) SeedDefaults(appName string, pointsPerReport int) error {
	defaults := []models.RemoteConfig{
		{Key: "app_name", Value: appName, Type: "string"},
		{Key: "default_language", Value: "nl", Type: "string"},
		{Key: "supported_languages", Value: "nl,en,fr", Type: "string"},
		{Key: "maintenance_mode", Value: "false", Type: "bool"},
		{Key: "points_per_verified_report", Value: strconv.Itoa(pointsPerReport), Type: "int"},
		{Key: "map_center", Value: `{"lat":51.0543,"long":3.7174,"zoom":13}`, Type: "json"},
		{Key: "announcement_title", Value: "", Type: "string"},
		{Key: "announcement_message", Value: "", Type: "string"},
	}

	for i := range defaults {
		err := h.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&defaults[i]).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Values decodes every row by its declared type.
func (h *RemoteConfigHandler) Values() (map[string]interface{}, error) {
	var configs []models.RemoteConfig
	if err := h.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]interface{})
	var errs []error
	for _, cfg := range configs {
		var value interface{}
		var err error
		switch cfg.Type {
		case "bool":
			value, err = strconv.ParseBool(cfg.Value)
		case "int":
			value, err = strconv.Atoi(cfg.Value)
		case "json":
			err = json.Unmarshal([]byte(cfg.Value), &value)
		default:
			value = cfg.Value
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result[cfg.Key] = value
	}
	if len(errs) > 0 && len(result) == 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
