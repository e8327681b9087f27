package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

type UsageService interface {
	Ingest(ctx context.Context, childID domain.AccountID, batch dto.UsageBatch) (*dto.UsageReport, error)
	ForChild(ctx context.Context, parentID, childID domain.AccountID) ([]dto.AppUsage, error)
	Children(ctx context.Context, parentID domain.AccountID) ([]dto.ChildSummary, error)
	SetIcon(ctx context.Context, childID domain.AccountID, app string, image []byte) (*dto.AppUsage, error)
}
