package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubTokens embeds the interface so only the methods under test need stubbing.
type stubTokens struct {
	auth.TokenRepository
	mock.Mock
}

func (s *stubTokens) FindAccessToken(ctx context.Context, id string) (*auth.AccessToken, error) {
	args := s.Called(id)
	t, _ := args.Get(0).(*auth.AccessToken)
	return t, args.Error(1)
}

func (s *stubTokens) DeleteAccessToken(ctx context.Context, id string) error {
	return s.Called(id).Error(0)
}

func setupCache(t *testing.T, next auth.TokenRepository) (*TokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(next, client, 10*time.Minute), mr
}

func TestFindAccessTokenIsCached(t *testing.T) {
	user := "u1"
	token := &auth.AccessToken{
		ID:        "tok1",
		ClientID:  "c1",
		UserID:    &user,
		Scopes:    []string{"read", "write"},
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	next := new(stubTokens)
	next.On("FindAccessToken", "tok1").Return(token, nil).Once()

	cache, mr := setupCache(t, next)
	ctx := context.Background()

	first, err := cache.FindAccessToken(ctx, "tok1")
	require.NoError(t, err)
	second, err := cache.FindAccessToken(ctx, "tok1")
	require.NoError(t, err)

	assert.Equal(t, first.Scopes, second.Scopes)
	assert.Equal(t, "u1", *second.UserID)
	assert.True(t, second.ExpiresAt.Equal(token.ExpiresAt))
	next.AssertNumberOfCalls(t, "FindAccessToken", 1)

	ttl := mr.TTL(keyPrefix + "tok1")
	assert.LessOrEqual(t, ttl, 10*time.Minute, "capped by maxTTL")
}

func TestDeleteAccessTokenEvicts(t *testing.T) {
	token := &auth.AccessToken{ID: "tok1", ClientID: "c1", ExpiresAt: time.Now().Add(time.Hour)}
	next := new(stubTokens)
	next.On("FindAccessToken", "tok1").Return(token, nil).Once()
	next.On("DeleteAccessToken", "tok1").Return(nil).Once()

	cache, mr := setupCache(t, next)
	ctx := context.Background()

	_, err := cache.FindAccessToken(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"tok1"))

	require.NoError(t, cache.DeleteAccessToken(ctx, "tok1"))
	got, err := mr.Get(keyPrefix + "tok1")
	require.NoError(t, err)
	assert.Equal(t, revoked, got)

	_, err = cache.FindAccessToken(ctx, "tok1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	next.AssertNumberOfCalls(t, "FindAccessToken", 1)
	next.AssertCalled(t, "DeleteAccessToken", "tok1")
}

// slowTokens blocks FindAccessToken after reading so a revoke can complete
// while the stale row is still in flight.
type slowTokens struct {
	auth.TokenRepository
	token   *auth.AccessToken
	read    chan struct{}
	release chan struct{}
}

func (s *slowTokens) FindAccessToken(ctx context.Context, id string) (*auth.AccessToken, error) {
	copied := *s.token
	close(s.read)
	<-s.release
	return &copied, nil
}

func (s *slowTokens) DeleteAccessToken(ctx context.Context, id string) error {
	return nil
}

func TestRevokeDuringInFlightLookup(t *testing.T) {
	next := &slowTokens{
		token:   &auth.AccessToken{ID: "tok1", ClientID: "c1", ExpiresAt: time.Now().Add(time.Hour)},
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	cache, mr := setupCache(t, next)
	manager := auth.NewTokenManager(cache, auth.StaticSettings{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.FindAccessToken(ctx, "tok1")
	}()

	<-next.read
	require.NoError(t, manager.RevokeAccessToken(ctx, "tok1"))
	close(next.release)
	<-done

	got, err := mr.Get(keyPrefix + "tok1")
	require.NoError(t, err)
	assert.Equal(t, revoked, got, "late lookup must not overwrite the tombstone")

	isRevoked, err := manager.IsAccessTokenRevoked(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, isRevoked)
}

func TestTombstoneUsesDefaultTTLWithoutMaxTTL(t *testing.T) {
	next := new(stubTokens)
	next.On("DeleteAccessToken", "tok1").Return(nil)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := New(next, client, 0)
	require.NoError(t, cache.DeleteAccessToken(context.Background(), "tok1"))
	assert.Equal(t, tombstoneTTL, mr.TTL(keyPrefix+"tok1"))
}

func TestDeleteAccessTokenKeepsRecordWhenEvictionFails(t *testing.T) {
	next := new(stubTokens)
	cache, mr := setupCache(t, next)
	mr.SetError("READONLY")

	err := cache.DeleteAccessToken(context.Background(), "tok1")
	assert.Error(t, err)
	next.AssertNotCalled(t, "DeleteAccessToken", "tok1")
}

func TestFindAccessTokenFallsBackWhenRedisIsDown(t *testing.T) {
	token := &auth.AccessToken{ID: "tok1", ClientID: "c1", ExpiresAt: time.Now().Add(time.Hour)}
	next := new(stubTokens)
	next.On("FindAccessToken", "tok1").Return(token, nil)

	cache, mr := setupCache(t, next)
	mr.Close()

	found, err := cache.FindAccessToken(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ClientID)
}

func TestExpiredTokensAreNotCached(t *testing.T) {
	token := &auth.AccessToken{ID: "old", ClientID: "c1", ExpiresAt: time.Now().Add(-time.Minute)}
	next := new(stubTokens)
	next.On("FindAccessToken", "old").Return(token, nil)

	cache, mr := setupCache(t, next)
	_, err := cache.FindAccessToken(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, mr.Exists(keyPrefix+"old"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
