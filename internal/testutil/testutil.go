// Package testutil builds throwaway databases and tokens for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/database"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const JWTSecret = "test-secret-at-least-32-characters!!"

// Config returns a sqlite-backed configuration rooted in t.TempDir().
func Config(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DBDriver:                "sqlite",
		SQLitePath:              filepath.Join(dir, "test.db"),
		JWTSecret:               JWTSecret,
		JWTAccessExpiry:         15 * time.Minute,
		JWTRefreshExpiry:        time.Hour,
		AppEnv:                  "test",
		Timezone:                "Europe/Brussels",
		PointsPerVerifiedReport: 10,
		StorageDriver:           "local",
		UploadDir:               filepath.Join(dir, "uploads"),
		MaxUploadMB:             5,
		PublicBaseURL:           "http://localhost:8080",
	}
}

// NewDB opens a fresh sqlite database with the shared schema plus extra models.
func NewDB(t *testing.T, cfg *config.Config, extra ...interface{}) *gorm.DB {
	t.Helper()
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := database.MigrateShared(db); err != nil {
		t.Fatalf("migrate shared: %v", err)
	}
	if err := database.MigrateModels(db, extra); err != nil {
		t.Fatalf("migrate models: %v", err)
	}
	return db
}

// CreateUser inserts a user with password "secret123".
func CreateUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Test",
		LastName:  email,
		Role:      role,
		ThemeID:   models.DefaultThemeID,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// AccessToken signs a token the JWT middleware accepts.
func AccessToken(t *testing.T, userID uuid.UUID, email, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"role":  role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(JWTSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}
