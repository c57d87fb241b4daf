package types

import (
	"time"
)

// Tier is the subscription level gating usage quotas.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// User mirrors the identity provider's subject. The ID is the provider's
// user id (not a uuid), so rows line up with tokens without a mapping table.
type User struct {
	ID         string     `gorm:"primaryKey;column:id" json:"id"`
	Email      string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	FirstName  *string    `gorm:"column:first_name" json:"first_name"`
	Tier       Tier       `gorm:"not null;default:'FREE';column:tier" json:"tier"`
	UsageLimit *UsageLimit `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt  time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
