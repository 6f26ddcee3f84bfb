package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNameTooLong = errors.New("names must be at most 100 characters")

type ProfileService struct {
	db     *gorm.DB
	cfg    *config.Config
	points *PointsService
	filter *ContentFilter
}

func NewProfileService(db *gorm.DB, cfg *config.Config, points *PointsService, filter *ContentFilter) *ProfileService {
	return &ProfileService{db: db, cfg: cfg, points: points, filter: filter}
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IsAdmin combines the stored role with the ADMIN_EMAILS and ADMIN_USER_IDS lists.
func (s *ProfileService) IsAdmin(user *models.User) bool {
	return user.IsAdmin() || s.cfg.IsAdminEmail(user.Email) || s.cfg.IsAdminUserID(user.ID.String())
}

// Me assembles the post-login payload, including which home screen to show.
func (s *ProfileService) Me(ctx context.Context, userID uuid.UUID) (*dto.MeResponse, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.points.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	rank, err := s.points.Rank(ctx, userID)
	if err != nil {
		return nil, err
	}

	home := dto.HomeUser
	if s.IsAdmin(user) {
		home = dto.HomeAdmin
	}
	return &dto.MeResponse{
		User:    ToUserResponse(user),
		Home:    home,
		Balance: balance,
		Rank:    rank,
	}, nil
}

func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, req *dto.UpdateProfileRequest) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	for column, value := range map[string]*string{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"full_name":  req.FullName,
	} {
		if value == nil {
			continue
		}
		v := strings.TrimSpace(*value)
		if utf8.RuneCountInString(v) > 100 {
			return nil, ErrNameTooLong
		}
		if err := s.filter.Check(v); err != nil {
			return nil, err
		}
		updates[column] = v
	}
	if req.FullName == nil && (req.FirstName != nil || req.LastName != nil) {
		first, last := user.FirstName, user.LastName
		if v, ok := updates["first_name"].(string); ok {
			first = v
		}
		if v, ok := updates["last_name"].(string); ok {
			last = v
		}
		updates["full_name"] = strings.TrimSpace(first + " " + last)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	// Leaderboard entries carry display names.
	if _, renamed := updates["full_name"]; renamed && s.points != nil {
		s.points.Changed(ctx)
	}
	return s.Get(ctx, userID)
}

// List returns users with their balances for the admin dashboard.
func (s *ProfileService) List(ctx context.Context, limit, offset int) ([]dto.AdminUserResponse, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Scopes(session.Paginate(limit, offset, 100)).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	var balances []models.UserPoints
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&balances).Error; err != nil {
			return nil, 0, err
		}
	}
	byUser := make(map[uuid.UUID]models.UserPoints, len(balances))
	for _, b := range balances {
		byUser[b.UserID] = b
	}

	result := make([]dto.AdminUserResponse, len(users))
	for i := range users {
		b := byUser[users[i].ID]
		result[i] = dto.AdminUserResponse{
			UserResponse:   ToUserResponse(&users[i]),
			TotalPoints:    b.TotalPoints,
			LifetimePoints: b.LifetimePoints,
			CreatedAt:      users[i].CreatedAt,
		}
	}
	return result, total, nil
}
