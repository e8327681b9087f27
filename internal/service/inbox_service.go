package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

type InboxService interface {
	// Fetch returns every unread message and marks exactly those read.
	Fetch(ctx context.Context, accountID domain.AccountID) ([]dto.InboxMessageView, error)
	Unread(ctx context.Context, accountID domain.AccountID) ([]dto.InboxMessageView, error)
	Ack(ctx context.Context, accountID domain.AccountID, ids []domain.MessageID) (int64, error)
	Captures(ctx context.Context, parentID domain.AccountID) ([]dto.CaptureView, error)
	// CaptureImage resolves the stored screenshot of a capture visible to parentID.
	CaptureImage(ctx context.Context, parentID domain.AccountID, id domain.CaptureID) (string, error)
	DeleteCapture(ctx context.Context, parentID domain.AccountID, id domain.CaptureID) error
}
