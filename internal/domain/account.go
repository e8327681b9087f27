package domain

import "time"

const (
	MinUsernameLength = 3
	MaxUsernameLength = 150
	MaxNameLength     = 50
	MinPasswordLength = 6

	DefaultProfileImage = "profileImages/guest-user.webp"
)

type Account struct {
	ID           AccountID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string     `gorm:"size:150;not null;uniqueIndex:ux_accounts_username" json:"username"`
	Role         Role       `gorm:"size:10;not null" json:"role"`
	FirstName    string     `gorm:"size:50;not null" json:"firstName"`
	LastName     string     `gorm:"size:50;not null" json:"lastName"`
	Gender       Gender     `gorm:"size:10;not null;default:'1'" json:"gender"`
	ProfileImage string     `gorm:"size:1024;not null" json:"profileImage"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updatedAt"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) IsParent() bool { return a.Role == RoleParent }
func (a *Account) IsChild() bool  { return a.Role == RoleChild }
