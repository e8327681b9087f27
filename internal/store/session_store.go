package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStore struct{ db *gorm.DB }

func (s *Store) Sessions() *SessionStore { return &SessionStore{s.DB} }

func (ss *SessionStore) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.RefreshID == uuid.Nil {
		s.RefreshID = uuid.New()
	}
	return ss.db.WithContext(ctx).Create(s).Error
}

func (ss *SessionStore) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var s domain.Session
	if err := ss.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (ss *SessionStore) GetByRefreshID(ctx context.Context, rid uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	if err := ss.db.WithContext(ctx).First(&s, "refresh_id = ?", rid).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// Rotate swaps the refresh id only if oldRID is still current, so a replayed
// refresh token loses the race.
func (ss *SessionStore) Rotate(ctx context.Context, id domain.SessionID, oldRID, newRID uuid.UUID, expires time.Time, ip, ua string) (bool, error) {
	res := ss.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND refresh_id = ? AND revoked_at IS NULL", id, oldRID).
		Updates(map[string]any{
			"refresh_id": newRID,
			"expires_at": expires,
			"ip":         ip,
			"user_agent": ua,
		})
	return res.RowsAffected == 1, res.Error
}

func (ss *SessionStore) Revoke(ctx context.Context, id domain.SessionID, at time.Time) error {
	return ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

func (ss *SessionStore) RevokeAllForAccount(ctx context.Context, accountID domain.AccountID, at time.Time) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Update("revoked_at", at)
	return tx.RowsAffected, tx.Error
}
