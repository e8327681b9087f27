package dto

import "time"

const (
	ActionUpdatePersonalInfo = "updatePersonaInfo"
	ActionUpdatePassword     = "updatePassword"
)

type AccountView struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	UserType     string     `json:"userType"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Gender       string     `json:"gender"`
	ProfileImage string     `json:"profileImage"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

type UpdateAccountRequest struct {
	Action          string `json:"action"`
	Username        string `json:"username,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
	RePassword      string `json:"rePassword,omitempty"`
}

type DeleteAccountResponse struct {
	Deleted map[string]int64 `json:"deleted"`
}
