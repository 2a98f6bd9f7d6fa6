package models

import (
	"time"

	"gorm.io/gorm"
)

// OAuthClient is a registered client application. A nil SecretHash marks a
// public client. RestrictScopes and RestrictGrants tell an empty allow-list
// apart from no allow-list at all.
type OAuthClient struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	SecretHash     *string
	RestrictScopes bool                     `gorm:"not null;default:false"`
	RestrictGrants bool                     `gorm:"not null;default:false"`
	RedirectURIs   []OAuthClientRedirectURI `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Scopes         []OAuthClientScope       `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Grants         []OAuthClientGrant       `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

type OAuthClientRedirectURI struct {
	ClientID string `gorm:"primaryKey"`
	URI      string `gorm:"primaryKey"`
}

func (OAuthClientRedirectURI) TableName() string {
	return "oauth_client_redirect_uris"
}

type OAuthClientScope struct {
	ClientID string `gorm:"primaryKey"`
	ScopeID  string `gorm:"primaryKey"`
}

func (OAuthClientScope) TableName() string {
	return "oauth_client_scopes"
}

type OAuthClientGrant struct {
	ClientID  string `gorm:"primaryKey"`
	GrantType string `gorm:"primaryKey"`
}

func (OAuthClientGrant) TableName() string {
	return "oauth_client_grants"
}
