package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CaptureStore struct{ db *gorm.DB }

func (s *Store) Captures() *CaptureStore { return &CaptureStore{db: s.DB} }

func (c *CaptureStore) Create(ctx context.Context, fc *domain.FlaggedCapture) error {
	if fc.ID == uuid.Nil {
		fc.ID = uuid.New()
	}
	if fc.CreatedAt.IsZero() {
		fc.CreatedAt = time.Now().UTC()
	}
	return c.db.WithContext(ctx).Create(fc).Error
}

// ListForParent returns captures of every child linked to parent, newest first.
func (c *CaptureStore) ListForParent(ctx context.Context, parent domain.AccountID) ([]domain.FlaggedCapture, error) {
	var out []domain.FlaggedCapture
	err := c.db.WithContext(ctx).
		Preload("ChildProfile.Account").
		Joins("JOIN child_profiles ON child_profiles.id = flagged_captures.child_profile_id").
		Where("child_profiles.linked_parent_id = ?", parent).
		Order("flagged_captures.created_at desc").
		Find(&out).Error
	return out, err
}

func (c *CaptureStore) CountByProfile(ctx context.Context, profile domain.ChildProfileID) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&domain.FlaggedCapture{}).Where("child_profile_id = ?", profile).Count(&n).Error
	return n, err
}

// GetForParent only finds captures whose child is linked to parent.
func (c *CaptureStore) GetForParent(ctx context.Context, id domain.CaptureID, parent domain.AccountID) (*domain.FlaggedCapture, error) {
	var fc domain.FlaggedCapture
	err := c.db.WithContext(ctx).
		Joins("JOIN child_profiles ON child_profiles.id = flagged_captures.child_profile_id").
		Where("flagged_captures.id = ? AND child_profiles.linked_parent_id = ?", id, parent).
		First(&fc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &fc, nil
}

func (c *CaptureStore) Delete(ctx context.Context, id domain.CaptureID) error {
	return c.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.FlaggedCapture{}).Error
}

// ImagesByAccount lists stored capture images of the child profile owned by
// accountID.
func (c *CaptureStore) ImagesByAccount(ctx context.Context, accountID domain.AccountID) ([]string, error) {
	var out []string
	err := c.db.WithContext(ctx).Model(&domain.FlaggedCapture{}).
		Joins("JOIN child_profiles ON child_profiles.id = flagged_captures.child_profile_id").
		Where("child_profiles.account_id = ?", accountID).
		Pluck("flagged_captures.image", &out).Error
	return out, err
}
