package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/live"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// Ledger reasons.
const (
	ReasonReportVerified = "report_verified"
	ReasonChallenge      = "challenge_reward"
	ReasonStorePurchase  = "store_purchase"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

// LeaderboardCache stores pages under a generation. Get reports the current
// generation even on a miss; Set must be given that value so a page computed
// before an Invalidate is never served afterwards.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) (entries []dto.LeaderboardEntry, generation int64, ok bool)
	Set(ctx context.Context, limit int, generation int64, entries []dto.LeaderboardEntry)
	Invalidate(ctx context.Context)
}

// PointsService owns user_points and point_transactions. Award and Spend run
// inside the caller's transaction so the balance change commits together
// with the domain change that caused it.
type PointsService struct {
	db        *gorm.DB
	cache     LeaderboardCache
	publisher live.Publisher
}

func NewPointsService(db *gorm.DB, cache LeaderboardCache, publisher live.Publisher) *PointsService {
	if publisher == nil {
		publisher = live.NopPublisher{}
	}
	return &PointsService{db: db, cache: cache, publisher: publisher}
}

// Award credits amount to both the spendable and lifetime totals and appends
// a ledger entry. It returns the new spendable balance.
func (s *PointsService) Award(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, reason, refType, refID string) (balance int, err error) {
	ctx, end := tracing.StartSpan(ctx, "points.award",
		attribute.String("reason", reason),
		attribute.Int("amount", amount),
	)
	defer func() { end(err) }()

	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	row := models.UserPoints{UserID: userID, TotalPoints: amount, LifetimePoints: amount}
	err = tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_points":    gorm.Expr("user_points.total_points + ?", amount),
			"lifetime_points": gorm.Expr("user_points.lifetime_points + ?", amount),
			"updated_at":      time.Now().UTC(),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to credit points: %w", err)
	}

	return s.appendLedger(ctx, tx, userID, amount, reason, refType, refID)
}

// Spend debits amount from the spendable balance only when the balance covers
// it. Lifetime points are never reduced. A zero amount is a no-op.
func (s *PointsService) Spend(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, reason, refType, refID string) (balance int, err error) {
	ctx, end := tracing.StartSpan(ctx, "points.spend",
		attribute.String("reason", reason),
		attribute.Int("amount", amount),
	)
	defer func() { end(err) }()

	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if amount == 0 {
		total, _, err := balanceOf(tx.WithContext(ctx), userID)
		return total, err
	}

	res := tx.WithContext(ctx).Model(&models.UserPoints{}).
		Where("user_id = ? AND total_points >= ?", userID, amount).
		Updates(map[string]interface{}{
			"total_points": gorm.Expr("total_points - ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to debit points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientPoints
	}

	return s.appendLedger(ctx, tx, userID, -amount, reason, refType, refID)
}

func (s *PointsService) appendLedger(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason, refType, refID string) (int, error) {
	total, _, err := balanceOf(tx.WithContext(ctx), userID)
	if err != nil {
		return 0, err
	}
	entry := models.PointTransaction{
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		RefType:      refType,
		RefID:        refID,
		BalanceAfter: total,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return total, nil
}

// Changed must be called after a transaction that awarded points commits.
func (s *PointsService) Changed(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.publisher.Publish(live.Broadcast(live.TypeLeaderboardUpdated, nil))
}

func (s *PointsService) Balance(ctx context.Context, userID uuid.UUID) (dto.BalanceResponse, error) {
	total, lifetime, err := balanceOf(s.db.WithContext(ctx), userID)
	if err != nil {
		return dto.BalanceResponse{}, err
	}
	return dto.BalanceResponse{TotalPoints: total, LifetimePoints: lifetime}, nil
}

func balanceOf(db *gorm.DB, userID uuid.UUID) (total, lifetime int, err error) {
	var up models.UserPoints
	err = db.First(&up, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load balance: %w", err)
	}
	return up.TotalPoints, up.LifetimePoints, nil
}

// History returns ledger entries newest first.
func (s *PointsService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PointTransaction, int64, error) {
	var total int64
	base := s.db.WithContext(ctx).Model(&models.PointTransaction{}).Scopes(session.ForUser(userID))
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.PointTransaction
	err := s.db.WithContext(ctx).
		Scopes(session.ForUser(userID), session.Paginate(limit, offset, 100)).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, total, err
}

type leaderboardRow struct {
	UserID         uuid.UUID
	LifetimePoints int
	Email          string
	FirstName      string
	LastName       string
	FullName       string
}

// Leaderboard ranks users by lifetime points, ties broken by user id. Equal
// point totals share a rank (1, 2, 2, 4).
func (s *PointsService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	var generation int64
	if s.cache != nil {
		entries, gen, ok := s.cache.Get(ctx, limit)
		if ok {
			return entries, nil
		}
		generation = gen
	}

	var rows []leaderboardRow
	err := s.db.WithContext(ctx).Table("user_points").
		Select("user_points.user_id, user_points.lifetime_points, profiles.email, profiles.first_name, profiles.last_name, profiles.full_name").
		Joins("JOIN profiles ON profiles.id = user_points.user_id AND profiles.deleted_at IS NULL").
		Where("user_points.lifetime_points > 0").
		Order("user_points.lifetime_points DESC, user_points.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]dto.LeaderboardEntry, len(rows))
	for i, r := range rows {
		rank := i + 1
		if i > 0 && r.LifetimePoints == rows[i-1].LifetimePoints {
			rank = entries[i-1].Rank
		}
		u := models.User{Email: r.Email, FirstName: r.FirstName, LastName: r.LastName, FullName: r.FullName}
		entries[i] = dto.LeaderboardEntry{
			Rank:   rank,
			UserID: r.UserID,
			Name:   u.DisplayName(),
			Points: r.LifetimePoints,
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, limit, generation, entries)
	}
	return entries, nil
}

// Rank is 1 + the number of ranked users with strictly more lifetime points.
// Users who never earned points rank after everyone who did.
func (s *PointsService) Rank(ctx context.Context, userID uuid.UUID) (dto.UserRank, error) {
	db := s.db.WithContext(ctx)
	_, lifetime, err := balanceOf(db, userID)
	if err != nil {
		return dto.UserRank{}, err
	}

	ranked := db.Model(&models.UserPoints{}).
		Joins("JOIN profiles ON profiles.id = user_points.user_id AND profiles.deleted_at IS NULL").
		Where("user_points.lifetime_points > 0")

	var higher, total int64
	if err := ranked.Session(&gorm.Session{}).Where("user_points.lifetime_points > ?", lifetime).Count(&higher).Error; err != nil {
		return dto.UserRank{}, err
	}
	if err := ranked.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return dto.UserRank{}, err
	}
	if lifetime == 0 {
		total++
	}

	rank := int(higher) + 1
	percentile := 100.0
	if total > 0 {
		percentile = float64(rank) / float64(total) * 100
	}
	return dto.UserRank{
		UserID:     userID,
		Rank:       rank,
		Points:     lifetime,
		TotalUsers: int(total),
		Percentile: percentile,
	}, nil
}
