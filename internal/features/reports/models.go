package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"

	MediaImage = "image"
	MediaVideo = "video"
)

// TrashReport is one citizen litter report. Status only moves from pending
// to verified or rejected, once.
type TrashReport struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Image         string     `gorm:"type:text;not null" json:"image"`
	AfterImage    *string    `gorm:"type:text" json:"after_image"`
	MediaType     string     `gorm:"size:10;not null;default:'image'" json:"media_type"`
	Lat           *float64   `json:"lat"`
	Long          *float64   `gorm:"column:long" json:"long"`
	Description   *string    `gorm:"size:1000" json:"description"`
	LocationName  *string    `gorm:"size:255" json:"location_name"`
	Status        string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReviewedBy    *uuid.UUID `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	PointsAwarded int        `gorm:"not null;default:0" json:"points_awarded"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r *TrashReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (TrashReport) TableName() string {
	return "recorded_trash"
}

// --- DTOs ---

type ReviewRequest struct {
	Status string `json:"status"`
}

type ReviewResponse struct {
	Report        TrashReport `json:"report"`
	PointsAwarded int         `json:"points_awarded"`
}
