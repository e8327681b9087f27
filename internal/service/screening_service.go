package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

type ScreeningService interface {
	Analyze(ctx context.Context, childID domain.AccountID, image []byte) (*dto.ScreeningResponse, error)
}
