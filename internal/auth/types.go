package auth

import (
	"slices"
	"time"
)

// TokenKind distinguishes access tokens from refresh tokens in hooks and events.
type TokenKind string

const (
	KindAccessToken  TokenKind = "access_token"
	KindRefreshToken TokenKind = "refresh_token"
)

// Client is a registered OAuth2 client as seen by the core.
type Client struct {
	ID   string
	Name string
	// SecretHash is the bcrypt hash of the client secret. Nil marks a public client.
	SecretHash   *string
	RedirectURIs []string
	// AllowedGrantTypes is nil when the client is not restricted to specific grants.
	AllowedGrantTypes []string
	// AllowedScopes is nil when the client is not restricted to specific scopes.
	// An empty non-nil slice restricts the client to no scopes at all.
	AllowedScopes []string
}

// IsConfidential reports whether the client must present a secret.
func (c *Client) IsConfidential() bool {
	return c.SecretHash != nil
}

// AllowsGrant reports whether the client may use grantType. Clients without a
// grant list allow every grant.
func (c *Client) AllowsGrant(grantType string) bool {
	if c.AllowedGrantTypes == nil {
		return true
	}
	return slices.Contains(c.AllowedGrantTypes, grantType)
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Scope is a registered permission unit.
type Scope struct {
	ID          string
	Description string
}

// AccessToken is an issued access token.
type AccessToken struct {
	ID       string
	ClientID string
	// UserID is nil for tokens issued without a resource owner (client credentials).
	UserID    *string
	Scopes    []string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// OwnerType returns "user" for resource-owner tokens and "client" otherwise.
func (t *AccessToken) OwnerType() string {
	if t.UserID != nil {
		return "user"
	}
	return "client"
}

// OwnerID returns the resource owner id, or the client id for client tokens.
func (t *AccessToken) OwnerID() string {
	if t.UserID != nil {
		return *t.UserID
	}
	return t.ClientID
}

// HasScope reports whether every given scope is bound to the token.
func (t *AccessToken) HasScope(scopes ...string) bool {
	for _, s := range scopes {
		if !slices.Contains(t.Scopes, s) {
			return false
		}
	}
	return true
}

// RefreshToken is an issued refresh token.
//
// ExpiresAt is the only liveness field: a refresh token is usable while
// ExpiresAt is in the future. Revocation with a grace period moves ExpiresAt
// forward to now+grace instead of setting a separate revoked flag, so a
// revoked-but-graced token and a never-revoked token look the same.
type RefreshToken struct {
	ID            string
	AccessTokenID string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// AccessTokenRequest carries what the grant engine decided for a new access token.
type AccessTokenRequest struct {
	ClientID  string
	UserID    *string
	Scopes    []string
	ExpiresAt time.Time
}
