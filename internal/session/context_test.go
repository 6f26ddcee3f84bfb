package session

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestClaimsFromContext(t *testing.T) {
	userID := uuid.New()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{
			"sub":   userID.String(),
			"email": "jan@gent.be",
			"role":  "admin",
		}})
		got, err := GetUserID(c)
		if err != nil || got != userID {
			t.Errorf("GetUserID = %v, %v", got, err)
		}
		if GetEmail(c) != "jan@gent.be" {
			t.Errorf("GetEmail = %q", GetEmail(c))
		}
		if GetRole(c) != "admin" {
			t.Errorf("GetRole = %q", GetRole(c))
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	if _, err := app.Test(httptest.NewRequest("GET", "/", nil), -1); err != nil {
		t.Fatal(err)
	}
}

func TestGetUserIDWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if _, err := GetUserID(c); err == nil {
			t.Error("expected error without token")
		}
		if GetRole(c) != "" {
			t.Error("expected empty role without token")
		}
		return nil
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/", nil), -1); err != nil {
		t.Fatal(err)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset, max    int
		wantLimit, wantOffset int
	}{
		{0, 0, 50, 50, 0},
		{10, 5, 50, 10, 5},
		{500, -3, 100, 100, 0},
	}
	for _, tt := range tests {
		l, o := ClampPage(tt.limit, tt.offset, tt.max)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("ClampPage(%d,%d,%d) = %d,%d", tt.limit, tt.offset, tt.max, l, o)
		}
	}
}
