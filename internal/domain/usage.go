package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	MaxAppNameLength = 20
	// MaxUsageMinutes bounds one sample; a batch total stays far from int overflow.
	MaxUsageMinutes = math.MaxInt32
)

type UsageRecord struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	ChildProfileID ChildProfileID `gorm:"type:uuid;not null;uniqueIndex:ux_usage_child_app,priority:1" json:"childProfileId"`
	AppName        string         `gorm:"size:20;not null;uniqueIndex:ux_usage_child_app,priority:2" json:"appName"`
	Minutes        int            `gorm:"not null;index" json:"minutes"`
	Duration       string         `gorm:"size:16;not null" json:"hour"`
	IconImage      *string        `gorm:"size:1024" json:"imageOfApp,omitempty"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updatedAt"`

	ChildProfile *ChildProfile `gorm:"foreignKey:ChildProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// FormatDuration renders foreground minutes as HH:MM:00. Hours are not
// wrapped at 24.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}
