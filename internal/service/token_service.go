package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

type TokenService interface {
	Issue(ctx context.Context, acc *domain.Account, ip, ua string) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string, ip, ua string) (*dto.TokenResponse, error)
	// RevokeRefresh revokes the session a refresh token belongs to, provided
	// it is owned by accountID.
	RevokeRefresh(ctx context.Context, accountID domain.AccountID, refreshToken string) error
	RevokeSession(ctx context.Context, sessionID domain.SessionID) error
}
