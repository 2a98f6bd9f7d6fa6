package models

import (
	"time"
)

type OAuthAccessToken struct {
	ID        string                  `gorm:"primaryKey"`
	ClientID  string                  `gorm:"not null;index"`
	UserID    *string                 `gorm:"index"` // nil for client credentials tokens
	Scopes    []OAuthAccessTokenScope `gorm:"foreignKey:AccessTokenID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time               `gorm:"not null;index"`
	CreatedAt time.Time
}

func (OAuthAccessToken) TableName() string {
	return "oauth_access_tokens"
}

// OAuthAccessTokenScope binds a scope to an access token. Position keeps the
// order in which scopes were granted.
type OAuthAccessTokenScope struct {
	AccessTokenID string `gorm:"primaryKey"`
	ScopeID       string `gorm:"primaryKey"`
	Position      int
}

func (OAuthAccessTokenScope) TableName() string {
	return "oauth_access_token_scopes"
}

// OAuthRefreshToken keeps a single expiry. A revoked token inside its grace
// period has ExpiresAt moved up to the end of the grace window.
type OAuthRefreshToken struct {
	ID            string    `gorm:"primaryKey"`
	AccessTokenID string    `gorm:"not null;index"`
	ExpiresAt     time.Time `gorm:"not null;index"`
	CreatedAt     time.Time
}

func (OAuthRefreshToken) TableName() string {
	return "oauth_refresh_tokens"
}
