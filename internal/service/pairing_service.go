package service

import (
	"context"

	"guardian/internal/domain"
	"guardian/internal/dto"
)

// PairingKeyWriter persists a profile's pairing key if it has none yet.
type PairingKeyWriter interface {
	SetPairingKey(ctx context.Context, id domain.ChildProfileID, key string) (bool, error)
}

type PairingService interface {
	// IssueToken derives the pairing key of a new child profile and stores it
	// through w, which lets callers keep it inside their transaction.
	IssueToken(ctx context.Context, w PairingKeyWriter, profile *domain.ChildProfile, child *domain.Account) (string, error)
	Claim(ctx context.Context, parentID domain.AccountID, token string) (*dto.PairingResponse, error)
	Release(ctx context.Context, parentID domain.AccountID, token string) (*dto.PairingResponse, error)
	// Self returns the child's own pairing key and linked parent.
	Self(ctx context.Context, childID domain.AccountID) (*dto.ChildView, error)
}
