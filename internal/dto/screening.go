package dto

import "time"

type ScreeningResponse struct {
	Flagged        bool    `json:"flagged"`
	Confidence     float64 `json:"confidence"`
	ConfidenceText string  `json:"confidenceText"`
	Label          string  `json:"label,omitempty"`
	CaptureID      string  `json:"captureId,omitempty"`
}

type CaptureView struct {
	ID             string    `json:"id"`
	ChildAccountID string    `json:"childAccountId"`
	ChildFirstName string    `json:"childFirstName"`
	ChildLastName  string    `json:"childLastName"`
	ChildGender    string    `json:"childGender"`
	CapturedOn     string    `json:"dateOfNotification"`
	Image          string    `json:"imageOfNotification"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"createdAt"`
}
