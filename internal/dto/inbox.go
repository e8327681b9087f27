package dto

import "time"

type InboxMessageView struct {
	ID        string     `json:"id"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

type AckRequest struct {
	IDs []string `json:"ids"`
}

type AckResponse struct {
	Marked int64 `json:"marked"`
}
