package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenRepository is the durable store for access and refresh tokens.
//
// Implementations must treat deletes of absent records as success and must
// return ErrDuplicateID only when a create collides with an existing token id.
type TokenRepository interface {
	CreateAccessToken(ctx context.Context, token *AccessToken) error
	// FindAccessToken returns ErrNotFound when no record exists.
	FindAccessToken(ctx context.Context, id string) (*AccessToken, error)
	DeleteAccessToken(ctx context.Context, id string) error

	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	// FindRefreshToken returns ErrNotFound when no record exists.
	FindRefreshToken(ctx context.Context, id string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	// ShortenRefreshTokenExpiry moves expires_at earlier to the given time. It
	// never extends a record: one that already expires before expiresAt keeps
	// its expiry, so a repeated revoke cannot reopen the grace window. Absent
	// records are ignored.
	ShortenRefreshTokenExpiry(ctx context.Context, id string, expiresAt time.Time) error
	// RefreshTokenExistsAfter reports whether the record exists with expires_at > t.
	RefreshTokenExistsAfter(ctx context.Context, id string, t time.Time) (bool, error)

	// DeleteExpired removes access and refresh records with expires_at <= before.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ClientRepository looks up registered clients.
type ClientRepository interface {
	// FindClient returns ErrNotFound when the client does not exist.
	FindClient(ctx context.Context, id string) (*Client, error)
}

// ScopeRepository looks up registered scopes.
type ScopeRepository interface {
	// FindScope returns ErrNotFound when the scope does not exist.
	FindScope(ctx context.Context, id string) (*Scope, error)
	ListScopes(ctx context.Context) ([]Scope, error)
}

// IDGenerator produces globally unique token identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Recorder receives lifecycle events, typically for metrics.
type Recorder interface {
	TokenIssued(kind TokenKind)
	TokenRevoked(kind TokenKind, graced bool)
	ClientRejected(reason string)
}

// RevocationNotifier is told about revocations after they have been stored.
type RevocationNotifier interface {
	TokenRevoked(ctx context.Context, kind TokenKind, id string) error
}

type noopRecorder struct{}

func (noopRecorder) TokenIssued(TokenKind)        {}
func (noopRecorder) TokenRevoked(TokenKind, bool) {}
func (noopRecorder) ClientRejected(string)        {}
