package domain

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        SessionID  `gorm:"type:uuid;primaryKey"`
	AccountID AccountID  `gorm:"type:uuid;not null;index"`
	RefreshID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_sessions_refresh_id"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
	IP        string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:512"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
