package challenges

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/features/events"
	"github.com/cleanupghent/cleanup-backend/internal/features/reports"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNotClaimable      = errors.New("challenge is not completed yet")
	ErrAlreadyClaimed    = errors.New("challenge reward already claimed")
)

type Service struct {
	db      *gorm.DB
	points  *services.PointsService
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
}

func NewService(db *gorm.DB, cfg *config.Config, points *services.PointsService, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		points:  points,
		metrics: m,
		loc:     cfg.Location(),
		now:     time.Now,
	}
}

func validDefinition(d catalog.ChallengeDef) error {
	switch d.Type {
	case TypeDaily, TypeWeekly, TypeSeasonal, TypeOneTime:
	default:
		return fmt.Errorf("challenge %s: unknown type %q", d.Slug, d.Type)
	}
	switch d.Metric {
	case MetricReportsSubmitted, MetricReportsVerified, MetricPointsEarned, MetricDistinctLocations, MetricEventsAttended:
	default:
		return fmt.Errorf("challenge %s: unknown metric %q", d.Slug, d.Metric)
	}
	return nil
}

// SeedDefinitions upserts catalog challenges by slug and deactivates slugs
// that are no longer in the catalog. Existing user rows keep their goal.
func (s *Service) SeedDefinitions(ctx context.Context, defs []catalog.ChallengeDef) error {
	rows := make([]Challenge, 0, len(defs))
	slugs := make([]string, 0, len(defs))
	for _, d := range defs {
		if err := validDefinition(d); err != nil {
			return err
		}
		start, end, err := d.Window()
		if err != nil {
			return err
		}
		rows = append(rows, Challenge{
			Slug:        d.Slug,
			Title:       d.Title,
			Description: d.Description,
			Type:        d.Type,
			Metric:      d.Metric,
			GoalTarget:  d.GoalTarget,
			Points:      d.Points,
			BeforeHour:  d.BeforeHour,
			StartsAt:    start,
			EndsAt:      end,
			Active:      true,
		})
		slugs = append(slugs, d.Slug)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "description", "type", "metric", "goal_target", "points",
					"before_hour", "starts_at", "ends_at", "active", "updated_at",
				}),
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("failed to seed challenges: %w", err)
			}
		}

		deactivate := tx.Model(&Challenge{}).Where("active = ?", true)
		if len(slugs) > 0 {
			deactivate = deactivate.Where("slug NOT IN ?", slugs)
		}
		if err := deactivate.Update("active", false).Error; err != nil {
			return err
		}
		slog.Info("challenges seeded", "count", len(rows))
		return nil
	})
}

func (s *Service) activeChallenges(db *gorm.DB, now time.Time) ([]Challenge, error) {
	var all []Challenge
	if err := db.Where("active = ?", true).Order("type ASC, slug ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	running := all[:0]
	for _, c := range all {
		if c.runningAt(now) {
			running = append(running, c)
		}
	}
	return running, nil
}

// Sync recomputes the caller's progress on every running challenge for the
// current period and returns the current rows. Claimed rows are left alone.
func (s *Service) Sync(ctx context.Context, userID uuid.UUID) (rows []UserChallenge, err error) {
	ctx, end := tracing.StartSpan(ctx, "challenges.sync")
	defer func() { end(err) }()

	db := s.db.WithContext(ctx)
	now := s.now()
	challenges, err := s.activeChallenges(db, now)
	if err != nil {
		return nil, err
	}

	for i := range challenges {
		c := &challenges[i]
		p := periodFor(c, now, s.loc)
		progress, err := s.progress(db, userID, c, p)
		if err != nil {
			return nil, fmt.Errorf("challenge %s: %w", c.Slug, err)
		}
		row, err := s.upsertProgress(db, userID, c, p.Key, progress, now)
		if err != nil {
			return nil, fmt.Errorf("challenge %s: %w", c.Slug, err)
		}
		row.Challenge = *c
		rows = append(rows, *row)
	}
	return rows, nil
}

// Refresh is Sync for callers that only need the side effect.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Sync(ctx, userID)
	return err
}

func (s *Service) upsertProgress(db *gorm.DB, userID uuid.UUID, c *Challenge, periodKey string, progress int, now time.Time) (*UserChallenge, error) {
	var row UserChallenge
	err := db.Where("user_id = ? AND challenge_id = ? AND period_key = ?", userID, c.ID, periodKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = UserChallenge{
			UserID:      userID,
			ChallengeID: c.ID,
			PeriodKey:   periodKey,
			Progress:    progress,
			GoalTarget:  c.GoalTarget,
			Status:      StatusInProgress,
		}
		if progress >= c.GoalTarget {
			row.Status = StatusCompleted
			row.CompletedAt = &now
		}
		err = db.Omit(clause.Associations).Create(&row).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return &row, err
		}
		// A concurrent sync created the row first.
		err = db.Where("user_id = ? AND challenge_id = ? AND period_key = ?", userID, c.ID, periodKey).First(&row).Error
	}
	if err != nil {
		return nil, err
	}

	if row.Status == StatusClaimed || (row.Progress == progress && (row.Status == StatusCompleted || progress < row.GoalTarget)) {
		return &row, nil
	}

	updates := map[string]interface{}{"progress": progress, "updated_at": now}
	if row.Status == StatusInProgress && progress >= row.GoalTarget {
		updates["status"] = StatusCompleted
		updates["completed_at"] = now
	}
	res := db.Model(&UserChallenge{}).
		Where("id = ? AND status <> ?", row.ID, StatusClaimed).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if err := db.First(&row, "id = ?", row.ID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// progress evaluates c's metric for userID over p.
func (s *Service) progress(db *gorm.DB, userID uuid.UUID, c *Challenge, p period) (int, error) {
	start, end := p.Start.UTC(), p.End.UTC()

	switch c.Metric {
	case MetricReportsSubmitted:
		var created []time.Time
		err := db.Model(&reports.TrashReport{}).
			Where("user_id = ? AND status <> ? AND created_at >= ? AND created_at < ?", userID, reports.StatusRejected, start, end).
			Pluck("created_at", &created).Error
		if err != nil {
			return 0, err
		}
		if c.BeforeHour <= 0 {
			return len(created), nil
		}
		n := 0
		for _, t := range created {
			if t.In(s.loc).Hour() < c.BeforeHour {
				n++
			}
		}
		return n, nil

	case MetricReportsVerified:
		var n int64
		err := db.Model(&reports.TrashReport{}).
			Where("user_id = ? AND status = ? AND reviewed_at >= ? AND reviewed_at < ?", userID, reports.StatusVerified, start, end).
			Count(&n).Error
		return int(n), err

	case MetricPointsEarned:
		var sum int64
		err := db.Model(&models.PointTransaction{}).
			Select("COALESCE(SUM(delta), 0)").
			Where("user_id = ? AND delta > 0 AND reason <> ? AND created_at >= ? AND created_at < ?",
				userID, services.ReasonChallenge, start, end).
			Scan(&sum).Error
		return int(sum), err

	case MetricDistinctLocations:
		var located []reports.TrashReport
		err := db.Select("location_name", "lat", "long").
			Where("user_id = ? AND status = ? AND created_at >= ? AND created_at < ?", userID, reports.StatusVerified, start, end).
			Find(&located).Error
		if err != nil {
			return 0, err
		}
		seen := make(map[string]bool)
		for _, r := range located {
			if key := locationKey(r); key != "" {
				seen[key] = true
			}
		}
		return len(seen), nil

	case MetricEventsAttended:
		var n int64
		err := db.Model(&events.EventParticipant{}).
			Joins("JOIN events ON events.id = event_participants.event_id").
			Where("event_participants.user_id = ? AND event_participants.status = ? AND events.event_date >= ? AND events.event_date < ?",
				userID, events.ParticipantAttended, start, end).
			Count(&n).Error
		return int(n), err
	}
	return 0, fmt.Errorf("unknown metric %q", c.Metric)
}

// locationKey prefers the normalised place name and falls back to
// coordinates rounded to roughly 100m.
func locationKey(r reports.TrashReport) string {
	if r.LocationName != nil {
		if name := strings.Join(strings.Fields(strings.ToLower(*r.LocationName)), " "); name != "" {
			return "name:" + name
		}
	}
	if r.Lat != nil && r.Long != nil {
		return fmt.Sprintf("geo:%.3f,%.3f", *r.Lat, *r.Long)
	}
	return ""
}

// Claim moves a completed row to claimed and credits its points in one
// transaction. The status guard makes a second claim fail.
func (s *Service) Claim(ctx context.Context, userID, userChallengeID uuid.UUID) (resp *ClaimResponse, err error) {
	ctx, end := tracing.StartSpan(ctx, "challenges.claim")
	defer func() { end(err) }()

	now := s.now().UTC()
	var row UserChallenge
	var balance int

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Challenge").
			Where("id = ? AND user_id = ?", userChallengeID, userID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}

		res := tx.Model(&UserChallenge{}).
			Where("id = ? AND status = ?", row.ID, StatusCompleted).
			Updates(map[string]interface{}{"status": StatusClaimed, "claimed_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if row.Status == StatusClaimed {
				return ErrAlreadyClaimed
			}
			return ErrNotClaimable
		}
		row.Status = StatusClaimed
		row.ClaimedAt = &now

		if row.Challenge.Points > 0 {
			b, err := s.points.Award(ctx, tx, userID, row.Challenge.Points, services.ReasonChallenge, "challenge", row.ID.String())
			if err != nil {
				return err
			}
			balance = b
		} else {
			bal, err := s.points.Balance(ctx, userID)
			if err != nil {
				return err
			}
			balance = bal.TotalPoints
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncChallengeClaim()
	if row.Challenge.Points > 0 {
		s.metrics.AddPointsAwarded(services.ReasonChallenge, row.Challenge.Points)
		s.points.Changed(ctx)
	}
	slog.Info("challenge claimed",
		"user_id", userID.String(),
		"challenge", row.Challenge.Slug,
		"period", row.PeriodKey,
		"points", row.Challenge.Points,
	)
	return &ClaimResponse{Challenge: row, PointsAwarded: row.Challenge.Points, Balance: balance}, nil
}

// ListDefinitions is the admin view of every seeded challenge.
func (s *Service) ListDefinitions(ctx context.Context) ([]Challenge, error) {
	var all []Challenge
	err := s.db.WithContext(ctx).Order("active DESC, type ASC, slug ASC").Find(&all).Error
	return all, err
}

func (s *Service) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Where("user_id = ?", userID).Delete(&UserChallenge{}).Error
}
