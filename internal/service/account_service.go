package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

type AccountService interface {
	Signup(ctx context.Context, r dto.SignupRequest, ip, ua string) (*dto.AuthResponse, error)
	Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (*dto.AuthResponse, error)
	Logout(ctx context.Context, accountID domain.AccountID, refreshToken string) error
	Get(ctx context.Context, accountID domain.AccountID) (*dto.AccountView, error)
	Update(ctx context.Context, accountID domain.AccountID, r dto.UpdateAccountRequest) (*dto.AccountView, error)
	SetProfileImage(ctx context.Context, accountID domain.AccountID, image []byte) (*dto.AccountView, error)
	Delete(ctx context.Context, accountID domain.AccountID) (*dto.DeleteAccountResponse, error)
}
