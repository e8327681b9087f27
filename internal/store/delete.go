package store

import (
	"context"

	"guardian/internal/domain"

	"gorm.io/gorm"
)

// DeleteAccountData removes an account and everything it owns, returning the
// row counts per table captured before deletion. Children linked to a deleted
// parent are unlinked rather than deleted.
func (s *Store) DeleteAccountData(ctx context.Context, accountID domain.AccountID) (map[string]int64, error) {
	deleted := map[string]int64{}

	err := s.WithTx(ctx, func(tx *Store) error {
		db := tx.DB.WithContext(ctx)

		count := func(label string, query *gorm.DB) error {
			var total int64
			if err := query.Count(&total).Error; err != nil {
				return err
			}
			deleted[label] = total
			return nil
		}

		if err := count("accounts", db.Model(&domain.Account{}).Where("id = ?", accountID)); err != nil {
			return err
		}
		if deleted["accounts"] == 0 {
			return ErrRecordNotFound
		}

		profiles := db.Model(&domain.ChildProfile{}).Select("id").Where("account_id = ?", accountID)

		if err := count("childProfiles", db.Model(&domain.ChildProfile{}).Where("account_id = ?", accountID)); err != nil {
			return err
		}
		if err := count("usageRecords", db.Model(&domain.UsageRecord{}).Where("child_profile_id IN (?)", profiles)); err != nil {
			return err
		}
		if err := count("flaggedCaptures", db.Model(&domain.FlaggedCapture{}).Where("child_profile_id IN (?)", profiles)); err != nil {
			return err
		}
		if err := count("inboxMessages", db.Model(&domain.InboxMessage{}).Where("recipient_id = ?", accountID)); err != nil {
			return err
		}
		if err := count("sessions", db.Model(&domain.Session{}).Where("account_id = ?", accountID)); err != nil {
			return err
		}
		if err := count("passwordCredentials", db.Model(&domain.PasswordCredential{}).Where("account_id = ?", accountID)); err != nil {
			return err
		}

		unlinked, err := tx.Children().UnlinkAllForParent(ctx, accountID)
		if err != nil {
			return err
		}
		deleted["unlinkedChildren"] = unlinked

		if err := db.Where("child_profile_id IN (?)", profiles).Delete(&domain.UsageRecord{}).Error; err != nil {
			return err
		}
		if err := db.Where("child_profile_id IN (?)", profiles).Delete(&domain.FlaggedCapture{}).Error; err != nil {
			return err
		}
		if err := db.Where("account_id = ?", accountID).Delete(&domain.ChildProfile{}).Error; err != nil {
			return err
		}
		if err := db.Where("recipient_id = ?", accountID).Delete(&domain.InboxMessage{}).Error; err != nil {
			return err
		}
		if err := db.Where("account_id = ?", accountID).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		if err := db.Where("account_id = ?", accountID).Delete(&domain.PasswordCredential{}).Error; err != nil {
			return err
		}
		return db.Where("id = ?", accountID).Delete(&domain.Account{}).Error
	})

	return deleted, err
}
