package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const MaxMessageLength = 255

type InboxMessage struct {
	ID          MessageID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID AccountID  `gorm:"type:uuid;not null;index:idx_inbox_recipient_read,priority:1" json:"user"`
	Text        string     `gorm:"size:255;not null" json:"message"`
	IsRead      bool       `gorm:"not null;default:false;index:idx_inbox_recipient_read,priority:2" json:"is_read"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`

	Recipient *Account `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
}

func (InboxMessage) TableName() string { return "inbox_messages" }

// CaptureMessage is the text a parent receives when a capture of their child
// is stored.
func CaptureMessage(childFirstName string) string {
	return TruncateMessage(fmt.Sprintf("تم إنشاء %s بنجاح.", childFirstName))
}

func TruncateMessage(s string) string {
	if utf8.RuneCountInString(s) <= MaxMessageLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxMessageLength])
}
