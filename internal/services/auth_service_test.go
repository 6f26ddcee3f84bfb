package services

import (
	"context"
	"errors"
	"testing"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newAuthFixture(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	cfg := testutil.Config(t)
	cfg.AdminEmails = "stad@gent.be"
	db := testutil.NewDB(t, cfg)
	return NewAuthService(db, cfg, NewPointsService(db, nil, nil)), db
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     dto.RegisterRequest
		wantErr error
	}{
		{"missing email", dto.RegisterRequest{Password: "secret123"}, ErrInvalidEmail},
		{"bad email", dto.RegisterRequest{Email: "nope", Password: "secret123"}, ErrInvalidEmail},
		{"short password", dto.RegisterRequest{Email: "a@gent.be", Password: "12345"}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Register(ctx, &tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterLoginRefresh(t *testing.T) {
	s, _ := newAuthFixture(t)
	ctx := context.Background()

	resp, err := s.Register(ctx, &dto.RegisterRequest{
		Email:     "  Jan@Gent.be ",
		Password:  "secret123",
		FirstName: "Jan",
		LastName:  "Peeters",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Email != "jan@gent.be" || resp.User.FullName != "Jan Peeters" || resp.User.Role != models.RoleUser {
		t.Errorf("user = %+v", resp.User)
	}

	if _, err := s.Register(ctx, &dto.RegisterRequest{Email: "jan@gent.be", Password: "secret123"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register err = %v", err)
	}

	if _, err := s.Login(ctx, &dto.LoginRequest{Email: "jan@gent.be", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password err = %v", err)
	}
	login, err := s.Login(ctx, &dto.LoginRequest{Email: "JAN@gent.be", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, err := jwt.Parse(login.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte(testutil.JWTSecret), nil
	})
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != resp.User.ID.String() || claims["role"] != models.RoleUser {
		t.Errorf("claims = %v", claims)
	}

	refreshed, err := s.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh must rotate the token")
	}
	if _, err := s.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused refresh token err = %v", err)
	}

	if err := s.Logout(ctx, &dto.LogoutRequest{RefreshToken: refreshed.RefreshToken}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Refresh(ctx, &dto.RefreshRequest{RefreshToken: refreshed.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh after logout err = %v", err)
	}
}

func TestRegisterConfiguredAdmin(t *testing.T) {
	s, _ := newAuthFixture(t)
	resp, err := s.Register(context.Background(), &dto.RegisterRequest{Email: "stad@gent.be", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin", resp.User.Role)
	}
}

func TestDeleteAccount(t *testing.T) {
	s, db := newAuthFixture(t)
	ctx := context.Background()

	resp, err := s.Register(ctx, &dto.RegisterRequest{Email: "del@gent.be", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	userID := resp.User.ID

	points := NewPointsService(db, nil, nil)
	if err := db.Transaction(func(tx *gorm.DB) error {
		_, err := points.Award(ctx, tx, userID, 10, ReasonReportVerified, "report", "r1")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	var cleaned uuid.UUID
	s.OnDeleteAccount(func(tx *gorm.DB, id uuid.UUID) error {
		cleaned = id
		return nil
	})

	if err := s.DeleteAccount(ctx, userID, ""); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("empty password err = %v", err)
	}
	if err := s.DeleteAccount(ctx, userID, "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if err := s.DeleteAccount(ctx, userID, "secret123"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if cleaned != userID {
		t.Error("account cleanup hook did not run")
	}

	var count int64
	db.Model(&models.UserPoints{}).Where("user_id = ?", userID).Count(&count)
	if count != 0 {
		t.Error("points row survived account deletion")
	}
	if _, err := s.Register(ctx, &dto.RegisterRequest{Email: "del@gent.be", Password: "secret123"}); err != nil {
		t.Errorf("email should be reusable after deletion: %v", err)
	}
}
