// Package cache puts a Redis read-through cache in front of the access token
// store so bearer checks on hot paths skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	keyPrefix = "oauth:at:"

	// revoked marks an access token id as deleted. Late cache fills use SETNX
	// and cannot overwrite it.
	revoked = "revoked"

	// tombstoneTTL is used when no MaxTTL is set. It only needs to outlive
	// lookups that were already reading the store when the token was revoked.
	tombstoneTTL = time.Minute
)

// TokenCache decorates a TokenRepository. Access token lookups are cached until
// the token expires or MaxTTL passes, whichever comes first. Deleting a token
// replaces its entry with a tombstone before the underlying record is deleted.
// Refresh token calls go straight to the wrapped repository.
type TokenCache struct {
	auth.TokenRepository
	client *redis.Client
	maxTTL time.Duration
	now    func() time.Time
}

// New wraps next with a cache held in client. maxTTL bounds how long a cached
// entry may live; zero means until the token expires.
func New(next auth.TokenRepository, client *redis.Client, maxTTL time.Duration) *TokenCache {
	return &TokenCache{
		TokenRepository: next,
		client:          client,
		maxTTL:          maxTTL,
		now:             time.Now,
	}
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

type cachedAccessToken struct {
	ClientID  string    `json:"client_id"`
	UserID    *string   `json:"user_id,omitempty"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *TokenCache) FindAccessToken(ctx context.Context, id string) (*auth.AccessToken, error) {
	payload, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	switch {
	case err == nil:
		if string(payload) == revoked {
			return nil, auth.ErrNotFound
		}
		var cached cachedAccessToken
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &auth.AccessToken{
				ID:        id,
				ClientID:  cached.ClientID,
				UserID:    cached.UserID,
				Scopes:    cached.Scopes,
				ExpiresAt: cached.ExpiresAt,
				CreatedAt: cached.CreatedAt,
			}, nil
		}
		log.WithField("token_id", id).Warn("Discarding unreadable cached token")
	case !errors.Is(err, redis.Nil):
		log.WithError(err).Warn("Token cache read failed, falling back to store")
	}

	token, err := c.TokenRepository.FindAccessToken(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, token)
	return token, nil
}

// DeleteAccessToken writes a tombstone over the cache entry, then deletes the
// record. If the tombstone cannot be written the record is kept as well.
func (c *TokenCache) DeleteAccessToken(ctx context.Context, id string) error {
	ttl := c.maxTTL
	if ttl <= 0 {
		ttl = tombstoneTTL
	}
	if err := c.client.Set(ctx, keyPrefix+id, revoked, ttl).Err(); err != nil {
		return fmt.Errorf("evict cached token: %w", err)
	}
	return c.TokenRepository.DeleteAccessToken(ctx, id)
}

func (c *TokenCache) store(ctx context.Context, token *auth.AccessToken) {
	ttl := token.ExpiresAt.Sub(c.now())
	if c.maxTTL > 0 && ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	if ttl <= 0 {
		return
	}

	payload, err := json.Marshal(cachedAccessToken{
		ClientID:  token.ClientID,
		UserID:    token.UserID,
		Scopes:    token.Scopes,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, keyPrefix+token.ID, payload, ttl).Err(); err != nil {
		log.WithError(err).Warn("Token cache write failed")
	}
}
