package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/observability/metrics"
	"guardian/internal/observability/middleware"
	"guardian/internal/service"
	"guardian/internal/store"
	"guardian/internal/tokencipher"
)

type PairingServiceImpl struct {
	store  *store.Store
	cipher tokencipher.SymmetricCipher
}

func NewPairingServiceImpl(st *store.Store, cipher tokencipher.SymmetricCipher) *PairingServiceImpl {
	return &PairingServiceImpl{store: st, cipher: cipher}
}

// PairingPlaintext is what a pairing key decrypts to.
func PairingPlaintext(child *domain.Account) string {
	return child.ID.String() + "|" + child.Username
}

func (p *PairingServiceImpl) IssueToken(ctx context.Context, w service.PairingKeyWriter, profile *domain.ChildProfile, child *domain.Account) (string, error) {
	if profile.PairingKey != "" {
		return profile.PairingKey, nil
	}
	if profile.AccountID != child.ID {
		return "", fmt.Errorf("profile %s does not belong to account %s", profile.ID, child.ID)
	}
	token, err := p.cipher.Encrypt(PairingPlaintext(child))
	if err != nil {
		return "", fmt.Errorf("encrypt pairing key: %w", err)
	}
	ok, err := w.SetPairingKey(ctx, profile.ID, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: pairing key already issued", domain.ErrConflict)
	}
	profile.PairingKey = token
	return token, nil
}

func (p *PairingServiceImpl) Claim(ctx context.Context, parentID domain.AccountID, token string) (*dto.PairingResponse, error) {
	result := "claimed"
	defer func() {
		metrics.PairingClaimsTotal.WithLabelValues(result).Inc()
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		result = "invalid"
		return nil, domain.FieldError("key", "pairing key is required")
	}

	var out dto.PairingResponse
	err := p.store.WithTx(ctx, func(tx *store.Store) error {
		if err := requireParent(ctx, tx, parentID); err != nil {
			return err
		}

		prof, err := tx.Children().GetByPairingKeyForUpdate(ctx, token)
		if err != nil {
			return notFound(err, "no child with this pairing key")
		}
		if err := claimedError(prof, parentID); err != nil {
			return err
		}
		if err := p.verify(token, prof); err != nil {
			return err
		}

		ok, err := tx.Children().LinkParent(ctx, prof.ID, parentID)
		if err != nil {
			return err
		}
		if !ok {
			// lost the compare-and-set; report whoever won
			cur, err := tx.Children().GetByPairingKeyForUpdate(ctx, token)
			if err != nil {
				return notFound(err, "no child with this pairing key")
			}
			if err := claimedError(cur, parentID); err != nil {
				return err
			}
			return fmt.Errorf("%w: child could not be linked", domain.ErrConflict)
		}
		out = dto.PairingResponse{ChildAccountID: prof.AccountID.String(), Linked: true}
		return nil
	})
	if err != nil {
		result = claimResult(err)
		slog.Warn("pairing claim rejected", append(middleware.LogAttrs(ctx), "parent_id", parentID, "result", result, "error", err)...)
		return nil, err
	}

	slog.Info("child linked", append(middleware.LogAttrs(ctx), "parent_id", parentID, "child_account_id", out.ChildAccountID)...)
	return &out, nil
}

func (p *PairingServiceImpl) Release(ctx context.Context, parentID domain.AccountID, token string) (*dto.PairingResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.FieldError("key", "select a child first")
	}

	var out dto.PairingResponse
	err := p.store.WithTx(ctx, func(tx *store.Store) error {
		if err := requireParent(ctx, tx, parentID); err != nil {
			return err
		}
		prof, err := tx.Children().GetByPairingKeyAndParent(ctx, token, parentID)
		if err != nil {
			return notFound(err, "child is not linked to this parent")
		}
		ok, err := tx.Children().UnlinkParent(ctx, prof.ID, parentID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: child is not linked to this parent", domain.ErrNotFound)
		}
		out = dto.PairingResponse{ChildAccountID: prof.AccountID.String(), Linked: false}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("child unlinked", append(middleware.LogAttrs(ctx), "parent_id", parentID, "child_account_id", out.ChildAccountID)...)
	return &out, nil
}

func (p *PairingServiceImpl) Self(ctx context.Context, childID domain.AccountID) (*dto.ChildView, error) {
	prof, err := p.store.Children().GetByAccountID(ctx, childID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnknownAccount
		}
		return nil, err
	}
	return childView(ctx, p.store.Accounts(), prof)
}

// verify checks that token decrypts and names the profile's own account.
func (p *PairingServiceImpl) verify(token string, prof *domain.ChildProfile) error {
	plain, err := p.cipher.Decrypt(token)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	accountPart, _, ok := strings.Cut(plain, "|")
	if !ok || accountPart != prof.AccountID.String() {
		return fmt.Errorf("%w: key does not match child", domain.ErrInvalidToken)
	}
	return nil
}

func claimedError(prof *domain.ChildProfile, parentID domain.AccountID) error {
	switch {
	case prof.LinkedTo(parentID):
		return domain.ErrAlreadyClaimedBySelf
	case prof.Claimed():
		return domain.ErrAlreadyClaimedByOther
	}
	return nil
}

func claimResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyClaimedBySelf):
		return "already_self"
	case errors.Is(err, domain.ErrAlreadyClaimedByOther):
		return "already_other"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	}
	return "error"
}

func requireParent(ctx context.Context, st *store.Store, id domain.AccountID) error {
	acc, err := st.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.ErrUnknownAccount
		}
		return err
	}
	if !acc.IsParent() {
		return fmt.Errorf("%w: only parents can link children", domain.ErrForbidden)
	}
	return nil
}

type accountGetter interface {
	GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error)
}

// childView loads the linked parent, if any, for a child's own view.
func childView(ctx context.Context, accounts accountGetter, prof *domain.ChildProfile) (*dto.ChildView, error) {
	out := &dto.ChildView{PairingKey: prof.PairingKey}
	if prof.LinkedParentID == nil {
		return out, nil
	}
	parent, err := accounts.GetByID(ctx, *prof.LinkedParentID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return out, nil
		}
		return nil, err
	}
	out.Parent = &dto.ParentView{
		FirstName: parent.FirstName,
		LastName:  parent.LastName,
		Gender:    string(parent.Gender),
	}
	return out, nil
}
