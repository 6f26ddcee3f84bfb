package dto

import (
	"time"

	"github.com/google/uuid"
)

// Home tells the client which root screen to show after login.
const (
	HomeAdmin = "admin"
	HomeUser  = "user"
)

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

type SelectThemeRequest struct {
	ThemeID string `json:"theme_id"`
}

type BalanceResponse struct {
	TotalPoints    int `json:"total_points"`
	LifetimePoints int `json:"lifetime_points"`
}

type MeResponse struct {
	User    UserResponse    `json:"user"`
	Home    string          `json:"home"`
	Balance BalanceResponse `json:"balance"`
	Rank    UserRank        `json:"rank"`
}

type AdminUserResponse struct {
	UserResponse
	TotalPoints    int       `json:"total_points"`
	LifetimePoints int       `json:"lifetime_points"`
	CreatedAt      time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank   int       `json:"rank"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Points int       `json:"points"`
}

type UserRank struct {
	UserID     uuid.UUID `json:"user_id"`
	Rank       int       `json:"rank"`
	Points     int       `json:"points"`
	TotalUsers int       `json:"total_users"`
	Percentile float64   `json:"percentile"`
}

type PaginatedResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
