package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenModel stores activation, password reset and refresh tokens in one table.
type TokenModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_auth_tokens_user_kind,priority:1"`
	Kind       string     `gorm:"type:varchar(32);not null;index:idx_auth_tokens_user_kind,priority:2"`
	ValueHash  string     `gorm:"type:char(64);not null;uniqueIndex"`
	IssuedAt   time.Time  `gorm:"not null"`
	ExpiresAt  time.Time  `gorm:"not null;index"`
	ConsumedAt *time.Time `gorm:"index"`
}

func (TokenModel) TableName() string {
	return "auth_tokens"
}
