package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthTokenType identifies the flow a one-time token belongs to
type AuthTokenType string

const (
	// SignupToken confirms the email address given at sign-up
	SignupToken AuthTokenType = "signup"
	// MagicLinkToken signs a user in from an emailed link
	MagicLinkToken AuthTokenType = "magiclink"
	// AuthCodeToken is a short-lived code exchanged for a session
	AuthCodeToken AuthTokenType = "code"
)

// AuthTokenTypeFromString converts a string to an AuthTokenType. "email" is accepted
// as an alias of the magic link flow.
func AuthTokenTypeFromString(s string) (AuthTokenType, bool) {
	switch s {
	case "signup":
		return SignupToken, true
	case "magiclink", "email":
		return MagicLinkToken, true
	case "code":
		return AuthCodeToken, true
	default:
		return "", false
	}
}

// AuthToken is a single-use credential delivered out of band
type AuthToken struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	User       *User         `gorm:"constraint:OnDelete:CASCADE;"`
	TokenHash  string        `gorm:"uniqueIndex;not null"`
	Type       AuthTokenType `gorm:"type:varchar(20);not null"`
	ExpiresAt  time.Time     `gorm:"not null"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// BeforeCreate is a GORM hook that runs before creating a token
func (t *AuthToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsUsable reports whether the token can still be redeemed at now
func (t AuthToken) IsUsable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
