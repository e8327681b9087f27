package domain

import "time"

// ChildProfile is the monitoring side of a Child account. PairingKey is issued
// once when the profile is created and never changes; LinkedParentID is nil
// while the profile is unclaimed.
type ChildProfile struct {
	ID             ChildProfileID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID      AccountID      `gorm:"type:uuid;not null;uniqueIndex:ux_child_profiles_account" json:"accountId"`
	LinkedParentID *AccountID     `gorm:"type:uuid;index" json:"linkedParentId,omitempty"`
	PairingKey     string         `gorm:"size:255;not null;default:'';uniqueIndex:ux_child_profiles_pairing_key,where:pairing_key <> ''" json:"pairingKey"`
	CreatedAt      time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updatedAt"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ChildProfile) TableName() string { return "child_profiles" }

func (c *ChildProfile) Claimed() bool { return c.LinkedParentID != nil }

func (c *ChildProfile) LinkedTo(parent AccountID) bool {
	return c.LinkedParentID != nil && *c.LinkedParentID == parent
}
