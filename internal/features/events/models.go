package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	ParticipantRegistered = "registered"
	ParticipantAttended   = "attended"
	ParticipantNoShow     = "no_show"
	ParticipantCancelled  = "cancelled"
)

// Event is a group cleanup organised by an admin. ParticipantsCount mirrors
// the number of non-cancelled participant rows and is only changed with
// conditional updates.
type Event struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title             string    `gorm:"size:200;not null" json:"title"`
	Description       *string   `gorm:"size:2000" json:"description,omitempty"`
	LocationName      string    `gorm:"size:255;not null" json:"location_name"`
	Lat               float64   `gorm:"not null;default:0" json:"lat"`
	Long              float64   `gorm:"column:long;not null;default:0" json:"long"`
	EventDate         time.Time `gorm:"not null;index" json:"event_date"`
	CreatedBy         uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	MaxParticipants   *int      `json:"max_participants,omitempty"`
	ParticipantsCount int       `gorm:"not null;default:0" json:"participants_count"`
	Status            string    `gorm:"size:20;not null;default:'upcoming';index" json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) Joinable() bool {
	return e.Status == StatusUpcoming || e.Status == StatusActive
}

type EventParticipant struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_participant" json:"event_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_participant;index" json:"user_id"`
	Status   string    `gorm:"size:20;not null;default:'registered'" json:"status"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (p *EventParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	return nil
}

func (EventParticipant) TableName() string {
	return "event_participants"
}

// --- DTOs ---

type CreateEventRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	LocationName    string    `json:"location_name"`
	Lat             float64   `json:"lat"`
	Long            float64   `json:"long"`
	EventDate       time.Time `json:"event_date"`
	MaxParticipants *int      `json:"max_participants"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type EventSummary struct {
	Event
	IsJoined bool `json:"is_joined"`
}

type ParticipantView struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

type EventDetail struct {
	Event
	IsJoined     bool              `json:"is_joined"`
	Participants []ParticipantView `json:"participants"`
}

type ParticipantsChanged struct {
	EventID           uuid.UUID `json:"event_id"`
	ParticipantsCount int       `json:"participants_count"`
}
