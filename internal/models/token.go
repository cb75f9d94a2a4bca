package models

import "time"

type RefreshToken struct {
	ID                uint      `gorm:"primaryKey"`
	TokenID           string    `gorm:"index"` // jti
	UserIDRef         uint      `gorm:"index"`
	TokenHash         string    `gorm:"uniqueIndex"`
	ExpiresAt         time.Time `gorm:"index"`
	RevokedAt         *time.Time
	ReplacedByTokenID *string
	CreatedAt         time.Time
}

// Action token purposes.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposePasswordReset = "password_reset"
)

// ActionToken is a one-time token delivered by email. Only the hash is stored.
type ActionToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserIDRef uint   `gorm:"index"`
	Purpose   string `gorm:"size:32;index"`
	TokenHash string `gorm:"uniqueIndex"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed at now.
func (t ActionToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
