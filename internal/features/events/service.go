package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/live"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrLocationRequired    = errors.New("location name is required")
	ErrEventDateInPast     = errors.New("event date must be in the future")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidCapacity     = errors.New("max participants must be greater than zero")
	ErrEventNotFound       = errors.New("event not found")
	ErrEventFull           = errors.New("this event is full")
	ErrAlreadyJoined       = errors.New("you have already joined this event")
	ErrNotJoined           = errors.New("you have not joined this event")
	ErrEventClosed         = errors.New("this event is no longer open for registration")
	ErrInvalidStatus       = errors.New("invalid event status")
	ErrInvalidParticipant  = errors.New("invalid participant status")
	ErrParticipantNotFound = errors.New("participant not found")
)

type Service struct {
	db        *gorm.DB
	filter    *services.ContentFilter
	publisher live.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(db *gorm.DB, filter *services.ContentFilter, publisher live.Publisher, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = live.NopPublisher{}
	}
	if filter == nil {
		filter = services.NewContentFilter()
	}
	return &Service{db: db, filter: filter, publisher: publisher, metrics: m, now: time.Now}
}

func (s *Service) Create(ctx context.Context, adminID uuid.UUID, req *CreateEventRequest) (*Event, error) {
	title := strings.TrimSpace(req.Title)
	location := strings.TrimSpace(req.LocationName)
	description := strings.TrimSpace(req.Description)

	switch {
	case title == "":
		return nil, ErrTitleRequired
	case location == "":
		return nil, ErrLocationRequired
	case !req.EventDate.After(s.now()):
		return nil, ErrEventDateInPast
	case req.Lat < -90 || req.Lat > 90 || req.Long < -180 || req.Long > 180:
		return nil, ErrInvalidCoordinates
	case req.MaxParticipants != nil && *req.MaxParticipants <= 0:
		return nil, ErrInvalidCapacity
	}
	if err := s.filter.Check(title + " " + description); err != nil {
		return nil, err
	}

	event := &Event{
		Title:           title,
		LocationName:    location,
		Lat:             req.Lat,
		Long:            req.Long,
		EventDate:       req.EventDate.UTC(),
		CreatedBy:       adminID,
		MaxParticipants: req.MaxParticipants,
		Status:          StatusUpcoming,
	}
	if description != "" {
		event.Description = &description
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.Info("event created", "event_id", event.ID.String(), "created_by", adminID.String())
	return event, nil
}

func (s *Service) joinedSet(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	joined := make(map[uuid.UUID]bool)
	if len(eventIDs) == 0 {
		return joined, nil
	}
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&EventParticipant{}).
		Where("user_id = ? AND event_id IN ? AND status <> ?", userID, eventIDs, ParticipantCancelled).
		Pluck("event_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		joined[id] = true
	}
	return joined, nil
}

// List returns open events, soonest first, flagged with the caller's
// registration.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]EventSummary, error) {
	var events []Event
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{StatusUpcoming, StatusActive}).
		Order("event_date ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	joined, err := s.joinedSet(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]EventSummary, len(events))
	for i, e := range events {
		out[i] = EventSummary{Event: e, IsJoined: joined[e.ID]}
	}
	return out, nil
}

func (s *Service) ListAll(ctx context.Context) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).Order("event_date ASC").Find(&events).Error
	return events, err
}

func (s *Service) get(db *gorm.DB, id uuid.UUID) (*Event, error) {
	var event Event
	if err := db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

type participantRow struct {
	UserID    uuid.UUID
	Status    string
	JoinedAt  time.Time
	Email     string
	FirstName string
	LastName  string
	FullName  string
}

func (s *Service) Detail(ctx context.Context, userID, eventID uuid.UUID) (*EventDetail, error) {
	db := s.db.WithContext(ctx)
	event, err := s.get(db, eventID)
	if err != nil {
		return nil, err
	}

	var rows []participantRow
	err = db.Table("event_participants").
		Select("event_participants.user_id, event_participants.status, event_participants.joined_at, profiles.email, profiles.first_name, profiles.last_name, profiles.full_name").
		Joins("JOIN profiles ON profiles.id = event_participants.user_id AND profiles.deleted_at IS NULL").
		Where("event_participants.event_id = ? AND event_participants.status <> ?", eventID, ParticipantCancelled).
		Order("event_participants.joined_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	detail := &EventDetail{Event: *event, Participants: make([]ParticipantView, len(rows))}
	for i, r := range rows {
		u := models.User{Email: r.Email, FirstName: r.FirstName, LastName: r.LastName, FullName: r.FullName}
		detail.Participants[i] = ParticipantView{UserID: r.UserID, Name: u.DisplayName(), Status: r.Status, JoinedAt: r.JoinedAt}
		if r.UserID == userID {
			detail.IsJoined = true
		}
	}
	return detail, nil
}

// reserveSeat bumps the counter only while the event has room.
func reserveSeat(tx *gorm.DB, eventID uuid.UUID) error {
	res := tx.Model(&Event{}).
		Where("id = ? AND (max_participants IS NULL OR participants_count < max_participants)", eventID).
		Updates(map[string]interface{}{
			"participants_count": gorm.Expr("participants_count + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventFull
	}
	return nil
}

func releaseSeat(tx *gorm.DB, eventID uuid.UUID) error {
	return tx.Model(&Event{}).
		Where("id = ? AND participants_count > 0", eventID).
		Updates(map[string]interface{}{
			"participants_count": gorm.Expr("participants_count - 1"),
			"updated_at":         time.Now().UTC(),
		}).Error
}

// Join registers userID for the event. The seat is reserved with a
// conditional counter update in the same transaction as the participant
// insert, so concurrent joins cannot overfill the event.
func (s *Service) Join(ctx context.Context, userID, eventID uuid.UUID) (count int, err error) {
	ctx, end := tracing.StartSpan(ctx, "events.join")
	defer func() { end(err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.get(tx, eventID)
		if err != nil {
			return err
		}
		if !event.Joinable() {
			return ErrEventClosed
		}

		var existing EventParticipant
		err = tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if found && existing.Status != ParticipantCancelled {
			return ErrAlreadyJoined
		}

		if err := reserveSeat(tx, eventID); err != nil {
			return err
		}

		if found {
			err = tx.Model(&EventParticipant{}).
				Where("id = ? AND status = ?", existing.ID, ParticipantCancelled).
				Updates(map[string]interface{}{"status": ParticipantRegistered, "joined_at": time.Now().UTC()}).Error
		} else {
			err = tx.Create(&EventParticipant{EventID: eventID, UserID: userID, Status: ParticipantRegistered}).Error
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyJoined
		}
		if err != nil {
			return err
		}

		return tx.Model(&Event{}).Select("participants_count").Where("id = ?", eventID).Scan(&count).Error
	})
	if err != nil {
		s.metrics.IncEventJoin(joinResult(err))
		return 0, err
	}

	s.metrics.IncEventJoin("joined")
	s.publishCount(eventID, count)
	slog.Info("event joined", "event_id", eventID.String(), "user_id", userID.String(), "participants", count)
	return count, nil
}

func joinResult(err error) string {
	switch {
	case errors.Is(err, ErrEventFull):
		return "full"
	case errors.Is(err, ErrAlreadyJoined):
		return "duplicate"
	case errors.Is(err, ErrEventClosed):
		return "closed"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	}
	return "error"
}

// Leave removes the caller's registration and frees the seat.
func (s *Service) Leave(ctx context.Context, userID, eventID uuid.UUID) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.get(tx, eventID); err != nil {
			return err
		}

		var existing EventParticipant
		if err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotJoined
			}
			return err
		}

		res := tx.Delete(&EventParticipant{}, "id = ?", existing.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 && existing.Status != ParticipantCancelled {
			if err := releaseSeat(tx, eventID); err != nil {
				return err
			}
		}
		return tx.Model(&Event{}).Select("participants_count").Where("id = ?", eventID).Scan(&count).Error
	})
	if err != nil {
		return 0, err
	}

	s.publishCount(eventID, count)
	return count, nil
}

func (s *Service) UpdateStatus(ctx context.Context, eventID uuid.UUID, status string) (*Event, error) {
	switch status {
	case StatusUpcoming, StatusActive, StatusCompleted, StatusCancelled:
	default:
		return nil, ErrInvalidStatus
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&Event{}).Where("id = ?", eventID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrEventNotFound
	}
	return s.get(db, eventID)
}

func (s *Service) Delete(ctx context.Context, eventID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&EventParticipant{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Event{}, "id = ?", eventID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventNotFound
		}
		return nil
	})
}

// SetParticipantStatus records attendance. Moving a participant into or out
// of cancelled adjusts the seat counter.
func (s *Service) SetParticipantStatus(ctx context.Context, eventID, userID uuid.UUID, status string) (*EventParticipant, error) {
	switch status {
	case ParticipantRegistered, ParticipantAttended, ParticipantNoShow, ParticipantCancelled:
	default:
		return nil, ErrInvalidParticipant
	}

	var participant EventParticipant
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&participant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		previous := participant.Status
		if previous == status {
			return tx.Model(&Event{}).Select("participants_count").Where("id = ?", eventID).Scan(&count).Error
		}

		switch {
		case previous == ParticipantCancelled:
			if err := reserveSeat(tx, eventID); err != nil {
				return err
			}
		case status == ParticipantCancelled:
			if err := releaseSeat(tx, eventID); err != nil {
				return err
			}
		}

		res := tx.Model(&EventParticipant{}).
			Where("id = ? AND status = ?", participant.ID, previous).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("participant %s changed concurrently", participant.ID)
		}
		participant.Status = status
		return tx.Model(&Event{}).Select("participants_count").Where("id = ?", eventID).Scan(&count).Error
	})
	if err != nil {
		return nil, err
	}

	s.publishCount(eventID, count)
	return &participant, nil
}

func (s *Service) publishCount(eventID uuid.UUID, count int) {
	s.publisher.Publish(live.Broadcast(live.TypeEventParticipants, ParticipantsChanged{
		EventID:           eventID,
		ParticipantsCount: count,
	}))
}

// DeleteUserData removes the user's registrations and frees their seats.
func (s *Service) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	var active []EventParticipant
	if err := tx.Where("user_id = ? AND status <> ?", userID, ParticipantCancelled).Find(&active).Error; err != nil {
		return err
	}
	for _, p := range active {
		if err := releaseSeat(tx, p.EventID); err != nil {
			return err
		}
	}
	return tx.Where("user_id = ?", userID).Delete(&EventParticipant{}).Error
}
