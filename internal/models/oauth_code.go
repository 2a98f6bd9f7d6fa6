package models

import (
	"time"
)

// OAuthCode is a pending authorization code. It is deleted when exchanged and
// pruned with expired tokens otherwise. CodeChallenge is empty for clients
// that did not use PKCE.
type OAuthCode struct {
	Code                string `gorm:"primaryKey"`
	ClientID            string `gorm:"not null"`
	UserID              string `gorm:"not null"`
	Scopes              string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time `gorm:"not null;index"`
	CreatedAt           time.Time
}

func (OAuthCode) TableName() string {
	return "oauth_codes"
}
