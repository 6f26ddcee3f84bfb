package store

import (
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase records one redemption of points for a catalog item.
// OwnershipKey is unique: a theme can be bought once per user, each coupon
// purchase gets its own key.
type Purchase struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_purchase_idempotency,priority:1" json:"user_id"`
	ItemID         string    `gorm:"size:100;not null" json:"item_id"`
	ItemType       string    `gorm:"size:20;not null" json:"item_type"`
	Price          int       `gorm:"not null" json:"price"`
	OwnershipKey   string    `gorm:"size:200;not null;uniqueIndex" json:"-"`
	IdempotencyKey *string   `gorm:"size:100;uniqueIndex:idx_purchase_idempotency,priority:2" json:"-"`
	VoucherCode    *string   `gorm:"size:32" json:"voucher_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Purchase) TableName() string {
	return "purchases"
}

// --- DTOs ---

type PurchaseRequest struct {
	ItemID string `json:"item_id"`
}

type PurchaseResponse struct {
	Purchase Purchase `json:"purchase"`
	Balance  int      `json:"balance"`
	Replayed bool     `json:"replayed,omitempty"`
}

type ItemView struct {
	catalog.StoreItem
	Owned  bool `json:"owned"`
	Active bool `json:"active,omitempty"`
}

type ItemsResponse struct {
	Items   []ItemView `json:"items"`
	Balance int        `json:"balance"`
}
