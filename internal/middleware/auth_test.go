package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTProtected(t *testing.T) {
	cfg := testutil.Config(t)
	app := fiber.New()
	app.Get("/me", JWTProtected(cfg), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	userID := uuid.New()
	hs384 := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"sub":  userID.String(),
		"role": models.RoleUser,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	otherAlg, err := hs384.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		header  string
		want    int
		message string
	}{
		{"valid token", "Bearer " + testutil.AccessToken(t, userID, "jan@gent.be", models.RoleUser), fiber.StatusNoContent, ""},
		{"no header", "", fiber.StatusUnauthorized, "missing bearer token"},
		{"wrong scheme", "Token abc", fiber.StatusUnauthorized, "missing bearer token"},
		{"other algorithm", "Bearer " + otherAlg, fiber.StatusUnauthorized, "invalid or expired token"},
		{"garbage", "Bearer not.a.jwt", fiber.StatusUnauthorized, "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.message == "" {
				return
			}
			var body dto.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if !body.Error || !strings.Contains(body.Message, tt.message) {
				t.Errorf("body = %+v, want message containing %q", body, tt.message)
			}
		})
	}
}
