package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyKey is a stored response for a mutating request. A key is
// scoped to the user that sent it, so two cashiers may reuse the same
// bill-based key.
type IdempotencyKey struct {
	ID           uuid.UUID `gorm:"size:36;primaryKey"`
	UserID       uuid.UUID `gorm:"uniqueIndex:idx_idempotency_user_key,priority:1;size:36;not null"`
	Key          string    `gorm:"uniqueIndex:idx_idempotency_user_key,priority:2;size:191;not null"`
	Endpoint     string    `gorm:"size:255;not null"` // e.g. "POST /api/v1/print-jobs"
	RequestHash  string    `gorm:"size:64"`           // sha256 of the body
	ResponseCode int       `gorm:"not null"`
	ResponseBody string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

func (i *IdempotencyKey) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// IsExpired reports whether the stored response may no longer be replayed.
func (i *IdempotencyKey) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
