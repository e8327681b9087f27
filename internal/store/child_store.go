package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChildStore struct{ db *gorm.DB }

func (s *Store) Children() *ChildStore { return &ChildStore{db: s.DB} }

func (c *ChildStore) Create(ctx context.Context, p *domain.ChildProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return translate(c.db.WithContext(ctx).Create(p).Error)
}

func (c *ChildStore) GetByAccountID(ctx context.Context, accountID domain.AccountID) (*domain.ChildProfile, error) {
	var p domain.ChildProfile
	if err := c.db.WithContext(ctx).Preload("Account").First(&p, "account_id = ?", accountID).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// GetByPairingKeyForUpdate locks the matching row until the surrounding
// transaction ends. SQLite ignores the locking clause.
func (c *ChildStore) GetByPairingKeyForUpdate(ctx context.Context, key string) (*domain.ChildProfile, error) {
	var p domain.ChildProfile
	err := c.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "pairing_key = ?", key).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (c *ChildStore) GetByPairingKeyAndParent(ctx context.Context, key string, parent domain.AccountID) (*domain.ChildProfile, error) {
	var p domain.ChildProfile
	err := c.db.WithContext(ctx).
		First(&p, "pairing_key = ? AND linked_parent_id = ?", key, parent).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SetPairingKey stores key only while the profile has none.
func (c *ChildStore) SetPairingKey(ctx context.Context, id domain.ChildProfileID, key string) (bool, error) {
	res := c.db.WithContext(ctx).Model(&domain.ChildProfile{}).
		Where("id = ? AND (pairing_key IS NULL OR pairing_key = '')", id).
		Updates(map[string]any{"pairing_key": key, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, translate(res.Error)
}

// LinkParent is a compare-and-set: it only succeeds while the profile is
// unclaimed. false means another writer linked it first.
func (c *ChildStore) LinkParent(ctx context.Context, id domain.ChildProfileID, parent domain.AccountID) (bool, error) {
	res := c.db.WithContext(ctx).Model(&domain.ChildProfile{}).
		Where("id = ? AND linked_parent_id IS NULL", id).
		Updates(map[string]any{"linked_parent_id": parent, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

func (c *ChildStore) UnlinkParent(ctx context.Context, id domain.ChildProfileID, parent domain.AccountID) (bool, error) {
	res := c.db.WithContext(ctx).Model(&domain.ChildProfile{}).
		Where("id = ? AND linked_parent_id = ?", id, parent).
		Updates(map[string]any{"linked_parent_id": nil, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

func (c *ChildStore) UnlinkAllForParent(ctx context.Context, parent domain.AccountID) (int64, error) {
	res := c.db.WithContext(ctx).Model(&domain.ChildProfile{}).
		Where("linked_parent_id = ?", parent).
		Updates(map[string]any{"linked_parent_id": nil, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// ListByParent returns the parent's linked children with their accounts loaded.
func (c *ChildStore) ListByParent(ctx context.Context, parent domain.AccountID) ([]domain.ChildProfile, error) {
	var out []domain.ChildProfile
	err := c.db.WithContext(ctx).
		Preload("Account").
		Where("linked_parent_id = ?", parent).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
