package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/live"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/notify"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/cleanupghent/cleanup-backend/internal/storage"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var (
	ErrMediaRequired         = errors.New("a photo or video is required")
	ErrAfterImageRequired    = errors.New("an after photo is required for photo reports")
	ErrAfterImageNotImage    = errors.New("the after photo must be an image")
	ErrLocationRequired      = errors.New("coordinates or a location name are required")
	ErrInvalidCoordinates    = errors.New("invalid coordinates")
	ErrDescriptionTooLong    = errors.New("description must be at most 1000 characters")
	ErrReportNotFound        = errors.New("report not found")
	ErrReportAlreadyReviewed = errors.New("report has already been reviewed")
	ErrInvalidReviewStatus   = errors.New("status must be verified or rejected")
	ErrInvalidBoundingBox    = errors.New("invalid bounding box")
)

const mapReportLimit = 500

// ProgressRefresher recomputes a user's challenge progress after their
// reports change.
type ProgressRefresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) error
}

type Deps struct {
	Points     *services.PointsService
	Storage    storage.Backend
	Filter     *services.ContentFilter
	Notifier   notify.Notifier
	Publisher  live.Publisher
	Metrics    *metrics.Metrics
	Challenges ProgressRefresher
}

type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type SubmitInput struct {
	Media        *Upload
	AfterImage   *Upload
	Lat          *float64
	Long         *float64
	LocationName string
	Description  string
}

type BoundingBox struct {
	MinLat, MinLong, MaxLat, MaxLong float64
}

func (b BoundingBox) valid() bool {
	return b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLong >= -180 && b.MaxLong <= 180 &&
		b.MinLat <= b.MaxLat && b.MinLong <= b.MaxLong
}

type Service struct {
	db             *gorm.DB
	deps           Deps
	awardPoints    int
	maxUploadBytes int64
}

func NewService(db *gorm.DB, cfg *config.Config, deps Deps) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = live.NopPublisher{}
	}
	if deps.Filter == nil {
		deps.Filter = services.NewContentFilter()
	}
	return &Service{
		db:             db,
		deps:           deps,
		awardPoints:    cfg.PointsPerVerifiedReport,
		maxUploadBytes: cfg.MaxUploadBytes(),
	}
}

func validCoordinates(lat, long *float64) error {
	if (lat == nil) != (long == nil) {
		return ErrInvalidCoordinates
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *long < -180 || *long > 180) {
		return ErrInvalidCoordinates
	}
	return nil
}

func (s *Service) checkUpload(u *Upload) (kind, ext string, err error) {
	kind, ext, err = storage.Classify(u.ContentType)
	if err != nil {
		return "", "", err
	}
	if s.maxUploadBytes > 0 && u.Size > s.maxUploadBytes {
		return "", "", storage.ErrFileTooLarge
	}
	return kind, ext, nil
}

// Submit stores the media and records a pending report. Photo reports need a
// matching after photo; video reports do not.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (report *TrashReport, err error) {
	ctx, end := tracing.StartSpan(ctx, "reports.submit")
	defer func() { end(err) }()

	if in.Media == nil {
		return nil, ErrMediaRequired
	}
	kind, ext, err := s.checkUpload(in.Media)
	if err != nil {
		return nil, err
	}

	var afterExt string
	if kind == storage.KindImage {
		if in.AfterImage == nil {
			return nil, ErrAfterImageRequired
		}
		afterKind, e, err := s.checkUpload(in.AfterImage)
		if err != nil {
			return nil, err
		}
		if afterKind != storage.KindImage {
			return nil, ErrAfterImageNotImage
		}
		afterExt = e
	}

	if err := validCoordinates(in.Lat, in.Long); err != nil {
		return nil, err
	}
	locationName := strings.TrimSpace(in.LocationName)
	if in.Lat == nil && locationName == "" {
		return nil, ErrLocationRequired
	}

	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > 1000 {
		return nil, ErrDescriptionTooLong
	}
	if err := s.deps.Filter.Check(description); err != nil {
		return nil, err
	}

	mediaURL, err := s.deps.Storage.Put(ctx, storage.ObjectKey(userID, ext), in.Media.ContentType, in.Media.Body, in.Media.Size)
	if err != nil {
		slog.Error("report media upload failed", "user_id", userID.String(), "action", "reports.submit", "error", err)
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	report = &TrashReport{
		UserID:    userID,
		Image:     mediaURL,
		MediaType: kind,
		Lat:       in.Lat,
		Long:      in.Long,
		Status:    StatusPending,
	}
	if afterExt != "" {
		afterURL, err := s.deps.Storage.Put(ctx, storage.ObjectKey(userID, afterExt), in.AfterImage.ContentType, in.AfterImage.Body, in.AfterImage.Size)
		if err != nil {
			slog.Error("report after photo upload failed", "user_id", userID.String(), "action", "reports.submit", "error", err)
			return nil, fmt.Errorf("failed to store after photo: %w", err)
		}
		report.AfterImage = &afterURL
	}
	if locationName != "" {
		report.LocationName = &locationName
	}
	if description != "" {
		report.Description = &description
	}

	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.deps.Metrics.IncReportSubmitted(kind)
	s.deps.Publisher.Publish(live.ToAdmins(live.TypeReportSubmitted, report))
	s.deps.Notifier.ReportSubmitted(ctx, notify.ReportNotice{
		ReportID:     report.ID,
		Reporter:     s.reporterName(ctx, userID),
		MediaType:    kind,
		MediaURL:     mediaURL,
		LocationName: locationName,
		Lat:          in.Lat,
		Long:         in.Long,
		Description:  description,
	})
	s.refreshProgress(ctx, userID)

	slog.Info("report submitted", "report_id", report.ID.String(), "user_id", userID.String(), "media_type", kind)
	return report, nil
}

func (s *Service) reporterName(ctx context.Context, userID uuid.UUID) string {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return userID.String()
	}
	return user.DisplayName()
}

func (s *Service) refreshProgress(ctx context.Context, userID uuid.UUID) {
	if s.deps.Challenges == nil {
		return
	}
	if err := s.deps.Challenges.Refresh(ctx, userID); err != nil {
		slog.Warn("challenge progress refresh failed", "user_id", userID.String(), "error", err)
	}
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TrashReport, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&TrashReport{}).Scopes(session.ForUser(userID)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reports []TrashReport
	err := s.db.WithContext(ctx).
		Scopes(session.ForUser(userID), session.Paginate(limit, offset, 100)).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, total, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TrashReport, error) {
	var report TrashReport
	if err := s.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// ListAll is the admin queue. An empty status lists every report.
func (s *Service) ListAll(ctx context.Context, status string, limit, offset int) ([]TrashReport, int64, error) {
	query := s.db.WithContext(ctx).Model(&TrashReport{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reports []TrashReport
	err := query.Session(&gorm.Session{}).
		Scopes(session.Paginate(limit, offset, 100)).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, total, err
}

// MapReports returns located, non-rejected reports, optionally inside box.
func (s *Service) MapReports(ctx context.Context, box *BoundingBox) ([]TrashReport, error) {
	query := s.db.WithContext(ctx).
		Where("status IN ?", []string{StatusPending, StatusVerified}).
		Where("lat IS NOT NULL AND long IS NOT NULL")
	if box != nil {
		if !box.valid() {
			return nil, ErrInvalidBoundingBox
		}
		query = query.Where("lat BETWEEN ? AND ? AND long BETWEEN ? AND ?", box.MinLat, box.MaxLat, box.MinLong, box.MaxLong)
	}

	var reports []TrashReport
	err := query.Order("created_at DESC").Limit(mapReportLimit).Find(&reports).Error
	return reports, err
}

// Review settles a pending report. Verification credits the reporter in the
// same transaction; the pending-status guard makes a second review a no-op
// that reports ErrReportAlreadyReviewed.
func (s *Service) Review(ctx context.Context, adminID, reportID uuid.UUID, status string) (report *TrashReport, err error) {
	ctx, end := tracing.StartSpan(ctx, "reports.review", attribute.String("status", status))
	defer func() { end(err) }()

	if status != StatusVerified && status != StatusRejected {
		return nil, ErrInvalidReviewStatus
	}

	award := 0
	if status == StatusVerified && s.awardPoints > 0 {
		award = s.awardPoints
	}
	now := time.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TrashReport{}).
			Where("id = ? AND status = ?", reportID, StatusPending).
			Updates(map[string]interface{}{
				"status":         status,
				"reviewed_by":    adminID,
				"reviewed_at":    now,
				"points_awarded": award,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&TrashReport{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrReportNotFound
			}
			return ErrReportAlreadyReviewed
		}

		report = &TrashReport{}
		if err := tx.First(report, "id = ?", reportID).Error; err != nil {
			return err
		}
		if award > 0 {
			if _, err := s.deps.Points.Award(ctx, tx, report.UserID, award, services.ReasonReportVerified, "report", report.ID.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncReportReviewed(status)
	if award > 0 {
		s.deps.Metrics.AddPointsAwarded(services.ReasonReportVerified, award)
		s.deps.Points.Changed(ctx)
	}
	s.deps.Publisher.Publish(live.ToUserAndAdmins(live.TypeReportReviewed, report.UserID, report))
	s.refreshProgress(ctx, report.UserID)

	slog.Info("report reviewed",
		"report_id", report.ID.String(),
		"status", status,
		"reviewed_by", adminID.String(),
		"points_awarded", award,
	)
	return report, nil
}

func (s *Service) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Where("user_id = ?", userID).Delete(&TrashReport{}).Error
}
