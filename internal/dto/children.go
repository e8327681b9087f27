package dto

import "time"

type PairingRequest struct {
	Key string `json:"key"`
}

type ParentView struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
}

// ChildView is what a child sees about itself.
type ChildView struct {
	PairingKey string      `json:"key"`
	Parent     *ParentView `json:"parent,omitempty"`
}

type ChildSummary struct {
	AccountID     string     `json:"accountId"`
	Username      string     `json:"username"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Gender        string     `json:"gender"`
	ProfileImage  string     `json:"profileImage"`
	LastConnectAt *time.Time `json:"lastConnect,omitempty"`
	TopApps       []AppUsage `json:"topApps"`
}

type PairingResponse struct {
	ChildAccountID string `json:"childAccountId"`
	Linked         bool   `json:"linked"`
}
