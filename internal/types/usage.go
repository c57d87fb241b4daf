package types

import (
	"time"

	"github.com/google/uuid"
)

// UsageLimit holds the rolling monthly counters for one user. At most one
// row per user; created lazily on the first quota check.
type UsageLimit struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                string    `gorm:"uniqueIndex;not null;column:user_id" json:"user_id"`
	ChatMessagesThisMonth int       `gorm:"not null;default:0;column:chat_messages_this_month" json:"chat_messages_this_month"`
	AnalysesThisMonth     int       `gorm:"not null;default:0;column:analyses_this_month" json:"analyses_this_month"`
	MonthResetAt          time.Time `gorm:"not null;column:month_reset_at" json:"month_reset_at"`
	CreatedAt             time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt             time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UsageLimit) TableName() string {
	return "usage_limit"
}
