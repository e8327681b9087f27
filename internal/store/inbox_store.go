package store

import (
	"context"
	"time"

	"guardian/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InboxStore struct{ db *gorm.DB }

func (s *Store) Inbox() *InboxStore { return &InboxStore{db: s.DB} }

func (i *InboxStore) Create(ctx context.Context, m *domain.InboxMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return i.db.WithContext(ctx).Create(m).Error
}

func (i *InboxStore) Unread(ctx context.Context, recipient domain.AccountID) ([]domain.InboxMessage, error) {
	var out []domain.InboxMessage
	err := i.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipient, false).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// MarkRead flips unread messages to read. Messages owned by someone else or
// already read are left alone.
func (i *InboxStore) MarkRead(ctx context.Context, recipient domain.AccountID, ids []domain.MessageID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := i.db.WithContext(ctx).Model(&domain.InboxMessage{}).
		Where("recipient_id = ? AND is_read = ? AND id IN ?", recipient, false, ids).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}
