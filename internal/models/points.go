package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPoints holds the spendable balance and the lifetime total a user has
// ever earned. Spending lowers TotalPoints only; ranking uses LifetimePoints.
type UserPoints struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalPoints    int       `gorm:"not null;default:0" json:"total_points"`
	LifetimePoints int       `gorm:"not null;default:0;index" json:"lifetime_points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UserPoints) TableName() string {
	return "user_points"
}

// PointTransaction is one append-only ledger entry. Delta is positive for
// awards and negative for spends.
type PointTransaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_point_tx_user_created,priority:1" json:"user_id"`
	Delta        int       `gorm:"not null" json:"delta"`
	Reason       string    `gorm:"size:50;not null" json:"reason"`
	RefType      string    `gorm:"size:50" json:"ref_type,omitempty"`
	RefID        string    `gorm:"size:64" json:"ref_id,omitempty"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"index:idx_point_tx_user_created,priority:2" json:"created_at"`
}

func (pt *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if pt.ID == uuid.Nil {
		pt.ID = uuid.New()
	}
	return nil
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}
