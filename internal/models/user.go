package models

import (
	"time"
)

// User is a resource owner that can sign in through the password and
// authorization code grants.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'user'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// All returns every table the server owns, in migration order.
func All() []any {
	return []any{
		&User{},
		&OAuthScope{},
		&OAuthClient{},
		&OAuthClientRedirectURI{},
		&OAuthClientScope{},
		&OAuthClientGrant{},
		&OAuthAccessToken{},
		&OAuthAccessTokenScope{},
		&OAuthRefreshToken{},
		&OAuthCode{},
	}
}
