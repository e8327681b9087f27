package impl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/media"
	"guardian/internal/observability/metrics"
	"guardian/internal/observability/middleware"
	"guardian/internal/store"
)

type InboxServiceImpl struct {
	store *store.Store
	media *media.Store
	now   func() time.Time
}

func NewInboxServiceImpl(st *store.Store, ms *media.Store) *InboxServiceImpl {
	return &InboxServiceImpl{store: st, media: ms, now: func() time.Time { return time.Now().UTC() }}
}

// Fanout tells the linked parent about a new capture. tx must be the
// transaction that created fc. A profile without a parent yields no message.
func (i *InboxServiceImpl) Fanout(ctx context.Context, tx *store.Store, prof *domain.ChildProfile, fc *domain.FlaggedCapture) (*domain.InboxMessage, error) {
	if prof.LinkedParentID == nil {
		slog.Info("capture stored without parent", append(middleware.LogAttrs(ctx), "capture_id", fc.ID)...)
		return nil, nil
	}
	first := ""
	if prof.Account != nil {
		first = prof.Account.FirstName
	}
	msg := &domain.InboxMessage{
		RecipientID: *prof.LinkedParentID,
		Text:        domain.CaptureMessage(first),
		CreatedAt:   i.now(),
	}
	if err := tx.Inbox().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("fanout: %w", err)
	}
	metrics.InboxMessagesTotal.Inc()
	slog.Info("parent notified", append(middleware.LogAttrs(ctx), "capture_id", fc.ID, "message_id", msg.ID, "parent_id", msg.RecipientID)...)
	return msg, nil
}

func (i *InboxServiceImpl) Fetch(ctx context.Context, accountID domain.AccountID) ([]dto.InboxMessageView, error) {
	var out []dto.InboxMessageView
	err := i.store.WithTx(ctx, func(tx *store.Store) error {
		msgs, err := tx.Inbox().Unread(ctx, accountID)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		ids := make([]domain.MessageID, len(msgs))
		for n, m := range msgs {
			ids[n] = m.ID
		}
		if _, err := tx.Inbox().MarkRead(ctx, accountID, ids, i.now()); err != nil {
			return err
		}
		out = messageViews(msgs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []dto.InboxMessageView{}
	}
	return out, nil
}

func (i *InboxServiceImpl) Unread(ctx context.Context, accountID domain.AccountID) ([]dto.InboxMessageView, error) {
	msgs, err := i.store.Inbox().Unread(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return messageViews(msgs), nil
}

func (i *InboxServiceImpl) Ack(ctx context.Context, accountID domain.AccountID, ids []domain.MessageID) (int64, error) {
	if len(ids) == 0 {
		return 0, domain.FieldError("ids", "at least one message id is required")
	}
	return i.store.Inbox().MarkRead(ctx, accountID, ids, i.now())
}

func (i *InboxServiceImpl) Captures(ctx context.Context, parentID domain.AccountID) ([]dto.CaptureView, error) {
	list, err := i.store.Captures().ListForParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CaptureView, 0, len(list))
	for _, fc := range list {
		v := dto.CaptureView{
			ID:         fc.ID.String(),
			CapturedOn: fc.CapturedOn.Format(time.DateOnly),
			Image:      fc.Image,
			Label:      fc.Label,
			Confidence: fc.Confidence,
			CreatedAt:  fc.CreatedAt,
		}
		if fc.ChildProfile != nil && fc.ChildProfile.Account != nil {
			acc := fc.ChildProfile.Account
			v.ChildAccountID = acc.ID.String()
			v.ChildFirstName = acc.FirstName
			v.ChildLastName = acc.LastName
			v.ChildGender = string(acc.Gender)
		}
		out = append(out, v)
	}
	return out, nil
}

func (i *InboxServiceImpl) CaptureImage(ctx context.Context, parentID domain.AccountID, id domain.CaptureID) (string, error) {
	fc, err := i.store.Captures().GetForParent(ctx, id, parentID)
	if err != nil {
		return "", notFound(err, "capture")
	}
	file, err := i.media.Abs(fc.Image)
	if err != nil {
		return "", fmt.Errorf("%w: capture image", domain.ErrNotFound)
	}
	if _, err := os.Stat(file); err != nil {
		return "", fmt.Errorf("%w: capture image", domain.ErrNotFound)
	}
	return file, nil
}

func (i *InboxServiceImpl) DeleteCapture(ctx context.Context, parentID domain.AccountID, id domain.CaptureID) error {
	fc, err := i.store.Captures().GetForParent(ctx, id, parentID)
	if err != nil {
		return notFound(err, "capture")
	}
	if err := i.store.Captures().Delete(ctx, fc.ID); err != nil {
		return err
	}
	if err := i.media.Remove(fc.Image); err != nil {
		slog.Warn("capture image not removed", append(middleware.LogAttrs(ctx), "capture_id", fc.ID, "error", err)...)
	}
	return nil
}

func messageViews(msgs []domain.InboxMessage) []dto.InboxMessageView {
	out := make([]dto.InboxMessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.InboxMessageView{
			ID:        m.ID.String(),
			Message:   m.Text,
			IsRead:    m.IsRead,
			CreatedAt: m.CreatedAt,
			ReadAt:    m.ReadAt,
		})
	}
	return out
}
