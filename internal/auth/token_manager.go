package auth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// TokenManager owns the lifecycle of access and refresh tokens. It is the only
// writer of token records.
type TokenManager struct {
	tokens   TokenRepository
	settings SettingsProvider
	ids      IDGenerator
	clock    Clock
	retry    RetryPolicy
	recorder Recorder
	notifier RevocationNotifier
}

// TokenManagerOption customizes a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithClock replaces the system clock.
func WithClock(c Clock) TokenManagerOption {
	return func(m *TokenManager) { m.clock = c }
}

// WithIDGenerator replaces the UUID token id generator.
func WithIDGenerator(g IDGenerator) TokenManagerOption {
	return func(m *TokenManager) { m.ids = g }
}

// WithRetryPolicy replaces DefaultRetryPolicy for store writes.
func WithRetryPolicy(p RetryPolicy) TokenManagerOption {
	return func(m *TokenManager) { m.retry = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) TokenManagerOption {
	return func(m *TokenManager) { m.recorder = r }
}

// WithRevocationNotifier attaches a notifier called after every revocation.
func WithRevocationNotifier(n RevocationNotifier) TokenManagerOption {
	return func(m *TokenManager) { m.notifier = n }
}

// NewTokenManager creates a TokenManager on top of the given store.
func NewTokenManager(tokens TokenRepository, settings SettingsProvider, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		tokens:   tokens,
		settings: settings,
		ids:      UUIDGenerator{},
		clock:    SystemClock{},
		retry:    DefaultRetryPolicy,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateAccessToken persists a new access token with a freshly generated id.
// The expiry is decided by the caller. Repeated scopes are stored once.
func (m *TokenManager) CreateAccessToken(ctx context.Context, req AccessTokenRequest) (*AccessToken, error) {
	token := &AccessToken{
		ClientID:  req.ClientID,
		UserID:    req.UserID,
		Scopes:    DedupeScopes(req.Scopes),
		ExpiresAt: req.ExpiresAt,
		CreatedAt: m.clock.Now(),
	}

	err := m.createWithFreshID(ctx, "create access token", func(id string) error {
		token.ID = id
		return m.retry.Do(ctx, "create access token", func(ctx context.Context) error {
			return m.tokens.CreateAccessToken(ctx, token)
		})
	})
	if err != nil {
		return nil, err
	}

	m.recorder.TokenIssued(KindAccessToken)
	log.WithFields(log.Fields{
		"token_id":  token.ID,
		"client_id": token.ClientID,
		"scopes":    token.Scopes,
	}).Debug("Access token issued")
	return token, nil
}

// RevokeAccessToken makes the token unusable immediately. Revoking an absent
// or already revoked token succeeds.
func (m *TokenManager) RevokeAccessToken(ctx context.Context, id string) error {
	err := m.retry.Do(ctx, "revoke access token", func(ctx context.Context) error {
		return m.tokens.DeleteAccessToken(ctx, id)
	})
	if err != nil {
		return persistenceError("revoke access token", err)
	}

	m.recorder.TokenRevoked(KindAccessToken, false)
	m.notify(ctx, KindAccessToken, id)
	return nil
}

// IsAccessTokenRevoked reports whether the token is missing or revoked. Both
// mean the token is not valid. On store failure it reports true with the error.
func (m *TokenManager) IsAccessTokenRevoked(ctx context.Context, id string) (bool, error) {
	_, err := m.tokens.FindAccessToken(ctx, id)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrNotFound):
		return true, nil
	default:
		return true, persistenceError("find access token", err)
	}
}

// LookupAccessToken returns the token if it exists and has not expired,
// otherwise ErrNotFound.
func (m *TokenManager) LookupAccessToken(ctx context.Context, id string) (*AccessToken, error) {
	token, err := m.tokens.FindAccessToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("find access token", err)
	}
	if !token.ExpiresAt.After(m.clock.Now()) {
		return nil, ErrNotFound
	}
	return token, nil
}

// CreateRefreshToken persists a refresh token linked to an access token.
func (m *TokenManager) CreateRefreshToken(ctx context.Context, accessTokenID string, expiresAt time.Time) (*RefreshToken, error) {
	token := &RefreshToken{
		AccessTokenID: accessTokenID,
		ExpiresAt:     expiresAt,
		CreatedAt:     m.clock.Now(),
	}

	err := m.createWithFreshID(ctx, "create refresh token", func(id string) error {
		token.ID = id
		return m.retry.Do(ctx, "create refresh token", func(ctx context.Context) error {
			return m.tokens.CreateRefreshToken(ctx, token)
		})
	})
	if err != nil {
		return nil, err
	}

	m.recorder.TokenIssued(KindRefreshToken)
	return token, nil
}

// RevokeRefreshToken revokes a refresh token using the grace period in effect
// now. With no grace period the record is deleted. Otherwise its expiry is
// brought forward to now+grace and it stays usable until then, so a client
// retrying a refresh whose response it lost is not locked out.
func (m *TokenManager) RevokeRefreshToken(ctx context.Context, id string) error {
	grace := m.settings.Settings().RefreshTokenGracePeriod

	var err error
	if grace <= 0 {
		err = m.retry.Do(ctx, "revoke refresh token", func(ctx context.Context) error {
			return m.tokens.DeleteRefreshToken(ctx, id)
		})
	} else {
		expiresAt := m.clock.Now().Add(grace)
		err = m.retry.Do(ctx, "revoke refresh token", func(ctx context.Context) error {
			return m.tokens.ShortenRefreshTokenExpiry(ctx, id, expiresAt)
		})
	}
	if err != nil {
		return persistenceError("revoke refresh token", err)
	}

	log.WithFields(log.Fields{
		"token_id":     id,
		"grace_period": grace,
	}).Debug("Refresh token revoked")
	m.recorder.TokenRevoked(KindRefreshToken, grace > 0)
	m.notify(ctx, KindRefreshToken, id)
	return nil
}

// IsRefreshTokenRevoked reports true unless the record exists and expires in
// the future. A token inside its grace period is therefore not revoked.
func (m *TokenManager) IsRefreshTokenRevoked(ctx context.Context, id string) (bool, error) {
	live, err := m.tokens.RefreshTokenExistsAfter(ctx, id, m.clock.Now())
	if err != nil {
		return true, persistenceError("find refresh token", err)
	}
	return !live, nil
}

// LookupRefreshToken returns the token while it is usable, otherwise ErrNotFound.
func (m *TokenManager) LookupRefreshToken(ctx context.Context, id string) (*RefreshToken, error) {
	token, err := m.tokens.FindRefreshToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("find refresh token", err)
	}
	if !token.ExpiresAt.After(m.clock.Now()) {
		return nil, ErrNotFound
	}
	return token, nil
}

// PruneExpired deletes every token record that is no longer usable, including
// refresh tokens whose grace period has run out.
func (m *TokenManager) PruneExpired(ctx context.Context) (int64, error) {
	n, err := m.tokens.DeleteExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, persistenceError("prune expired tokens", err)
	}
	if n > 0 {
		log.WithField("deleted", n).Info("Pruned expired tokens")
	}
	return n, nil
}

// createWithFreshID runs create with a new id, and once more with another id
// if the first one collided.
func (m *TokenManager) createWithFreshID(ctx context.Context, op string, create func(id string) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var id string
		id, err = m.ids.NewID()
		if err != nil {
			return persistenceError(op, err)
		}
		if err = create(id); !errors.Is(err, ErrDuplicateID) {
			break
		}
		log.WithField("op", op).Warn("Token id collision, regenerating id")
	}
	return persistenceError(op, err)
}

func (m *TokenManager) notify(ctx context.Context, kind TokenKind, id string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.TokenRevoked(ctx, kind, id); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"kind":     kind,
			"token_id": id,
		}).Warn("Failed to publish token revocation")
	}
}
