package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountStore struct{ db *gorm.DB }

func (s *Store) Accounts() *AccountStore { return &AccountStore{db: s.DB} }

func (a *AccountStore) Create(ctx context.Context, acc *domain.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	return translate(a.db.WithContext(ctx).Create(acc).Error)
}

func (a *AccountStore) GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	var acc domain.Account
	if err := a.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (a *AccountStore) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	var acc domain.Account
	if err := a.db.WithContext(ctx).First(&acc, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (a *AccountStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&domain.Account{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

// UpdateProfile writes the mutable personal fields. Role is never touched.
func (a *AccountStore) UpdateProfile(ctx context.Context, id domain.AccountID, username, first, last string) error {
	res := a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username":   username,
			"first_name": first,
			"last_name":  last,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (a *AccountStore) SetProfileImage(ctx context.Context, id domain.AccountID, path string) error {
	return translate(a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"profile_image": path, "updated_at": time.Now().UTC()}).Error)
}

func (a *AccountStore) TouchLastLogin(ctx context.Context, id domain.AccountID, at time.Time) error {
	return a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
