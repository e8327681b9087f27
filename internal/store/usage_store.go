package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageStore struct{ db *gorm.DB }

func (s *Store) Usage() *UsageStore { return &UsageStore{db: s.DB} }

// Upsert overwrites minutes and duration for (profile, app). It never adds
// to the stored value.
func (u *UsageStore) Upsert(ctx context.Context, rec *domain.UsageRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return u.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "child_profile_id"}, {Name: "app_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"minutes", "duration", "updated_at"}),
	}).Create(rec).Error
}

func (u *UsageStore) Get(ctx context.Context, profile domain.ChildProfileID, app string) (*domain.UsageRecord, error) {
	var rec domain.UsageRecord
	err := u.db.WithContext(ctx).First(&rec, "child_profile_id = ? AND app_name = ?", profile, app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (u *UsageStore) SetIcon(ctx context.Context, profile domain.ChildProfileID, app, path string) (bool, error) {
	res := u.db.WithContext(ctx).Model(&domain.UsageRecord{}).
		Where("child_profile_id = ? AND app_name = ?", profile, app).
		Update("icon_image", path)
	return res.RowsAffected == 1, res.Error
}

// ListByProfile orders by minutes, most used first. limit <= 0 means all.
func (u *UsageStore) ListByProfile(ctx context.Context, profile domain.ChildProfileID, limit int) ([]domain.UsageRecord, error) {
	var out []domain.UsageRecord
	tx := u.db.WithContext(ctx).
		Where("child_profile_id = ?", profile).
		Order("minutes desc").
		Order("app_name asc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// IconsByAccount lists stored icon images of the child profile owned by
// accountID.
func (u *UsageStore) IconsByAccount(ctx context.Context, accountID domain.AccountID) ([]string, error) {
	var out []string
	err := u.db.WithContext(ctx).Model(&domain.UsageRecord{}).
		Joins("JOIN child_profiles ON child_profiles.id = usage_records.child_profile_id").
		Where("child_profiles.account_id = ? AND usage_records.icon_image IS NOT NULL", accountID).
		Pluck("usage_records.icon_image", &out).Error
	return out, err
}
