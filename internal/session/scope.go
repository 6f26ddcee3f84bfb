package session

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForUser returns a GORM scope that filters rows owned by userID.
func ForUser(userID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// Paginate clamps limit to [1,max] and offset to >= 0.
func Paginate(limit, offset, max int) func(db *gorm.DB) *gorm.DB {
	limit, offset = ClampPage(limit, offset, max)
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit).Offset(offset)
	}
}

func ClampPage(limit, offset, max int) (int, int) {
	if limit <= 0 || limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
