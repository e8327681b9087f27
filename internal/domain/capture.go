package domain

import "time"

type FlaggedCapture struct {
	ID             CaptureID      `gorm:"type:uuid;primaryKey" json:"id"`
	ChildProfileID ChildProfileID `gorm:"type:uuid;not null;index" json:"childProfileId"`
	CapturedOn     time.Time      `gorm:"type:date;not null" json:"dateOfNotification"`
	Image          string         `gorm:"size:1024;not null" json:"imageOfNotification"`
	Label          string         `gorm:"size:128" json:"label"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `gorm:"not null" json:"createdAt"`

	ChildProfile *ChildProfile `gorm:"foreignKey:ChildProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

func (FlaggedCapture) TableName() string { return "flagged_captures" }
