package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(store TokenRepository, settings SettingsProvider, clock Clock, opts ...TokenManagerOption) *TokenManager {
	opts = append([]TokenManagerOption{
		WithClock(clock),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	}, opts...)
	return NewTokenManager(store, settings, opts...)
}

func TestCreateAccessToken(t *testing.T) {
	store := newMemoryTokens()
	clock := newFakeClock(1000)
	recorder := newCountingRecorder()
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"tok1"}}),
		WithRecorder(recorder))

	user := "user-42"
	token, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{
		ClientID:  "c1",
		UserID:    &user,
		Scopes:    []string{"read"},
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "tok1", token.ID)
	assert.Equal(t, "c1", token.ClientID)
	assert.Equal(t, "user", token.OwnerType())
	assert.Equal(t, "user-42", token.OwnerID())
	assert.Equal(t, clock.Now(), token.CreatedAt)
	assert.Equal(t, 1, recorder.issued[KindAccessToken])

	revoked, err := manager.IsAccessTokenRevoked(context.Background(), "tok1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCreateAccessTokenStoresRepeatedScopesOnce(t *testing.T) {
	store := newMemoryTokens()
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"tok1"}}))

	token, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{
		ClientID:  "c1",
		Scopes:    []string{"read", "write", "read"},
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "tok1", token.ID)
	assert.Equal(t, []string{"read", "write"}, token.Scopes)
	assert.Equal(t, []string{"read", "write"}, store.access["tok1"].Scopes)
}

func TestCreateAccessTokenRegeneratesCollidingID(t *testing.T) {
	store := newMemoryTokens()
	store.access["taken"] = AccessToken{ID: "taken", ClientID: "other"}
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"taken", "fresh"}}))

	token, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{
		ClientID:  "c1",
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.ID)
	assert.Equal(t, "other", store.access["taken"].ClientID)
}

func TestCreateAccessTokenSurfacesSecondCollision(t *testing.T) {
	store := newMemoryTokens()
	store.access["a"] = AccessToken{ID: "a"}
	store.access["b"] = AccessToken{ID: "b"}
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"a", "b", "c"}}))

	_, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{
		ClientID:  "c1",
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.True(t, IsPersistenceError(err))
	_, exists := store.access["c"]
	assert.False(t, exists, "only one regeneration is attempted")
}

func TestCreateAccessTokenRetriesTransientFailures(t *testing.T) {
	store := new(mockTokens)
	transient := errors.New("connection reset")
	store.On("CreateAccessToken", mock.Anything, mock.Anything).Return(transient).Twice()
	store.On("CreateAccessToken", mock.Anything, mock.Anything).Return(nil).Once()

	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock)

	token, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{
		ClientID:  "c1",
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	store.AssertNumberOfCalls(t, "CreateAccessToken", 3)
}

func TestCreateAccessTokenGivesUpAfterMaxAttempts(t *testing.T) {
	store := new(mockTokens)
	transient := errors.New("connection reset")
	store.On("CreateAccessToken", mock.Anything, mock.Anything).Return(transient)

	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock)

	_, err := manager.CreateAccessToken(context.Background(), AccessTokenRequest{ClientID: "c1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "create access token", pe.Op)
	store.AssertNumberOfCalls(t, "CreateAccessToken", 3)
}

func TestRevokeAccessToken(t *testing.T) {
	store := newMemoryTokens()
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"tok1"}}))
	ctx := context.Background()

	_, err := manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: clock.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, manager.RevokeAccessToken(ctx, "tok1"))
	revoked, err := manager.IsAccessTokenRevoked(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, revoked)

	t.Run("revoking twice is the same as once", func(t *testing.T) {
		require.NoError(t, manager.RevokeAccessToken(ctx, "tok1"))
		revoked, err := manager.IsAccessTokenRevoked(ctx, "tok1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("unknown tokens count as revoked", func(t *testing.T) {
		require.NoError(t, manager.RevokeAccessToken(ctx, "never-issued"))
		revoked, err := manager.IsAccessTokenRevoked(ctx, "never-issued")
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}

func TestRevokeAccessTokenConcurrently(t *testing.T) {
	store := newMemoryTokens()
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"tok1"}}))
	ctx := context.Background()

	_, err := manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: clock.Now().Add(time.Hour)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- manager.RevokeAccessToken(ctx, "tok1")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestIsAccessTokenRevokedFailsClosed(t *testing.T) {
	store := new(mockTokens)
	store.On("FindAccessToken", mock.Anything, "tok1").Return(nil, errors.New("db down"))
	manager := newTestManager(store, StaticSettings{}, newFakeClock(1000))

	revoked, err := manager.IsAccessTokenRevoked(context.Background(), "tok1")
	assert.True(t, revoked)
	assert.True(t, IsPersistenceError(err))
}

func TestLookupAccessTokenHonoursExpiry(t *testing.T) {
	store := newMemoryTokens()
	clock := newFakeClock(1000)
	manager := newTestManager(store, StaticSettings{}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"tok1"}}))
	ctx := context.Background()

	_, err := manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: time.Unix(1100, 0)})
	require.NoError(t, err)

	token, err := manager.LookupAccessToken(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "tok1", token.ID)

	clock.Set(1100)
	_, err = manager.LookupAccessToken(ctx, "tok1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshTokenGracePeriod(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, settings SettingsProvider, clock *fakeClock) (*TokenManager, *memoryTokens) {
		store := newMemoryTokens()
		manager := newTestManager(store, settings, clock,
			WithIDGenerator(&sequenceIDs{ids: []string{"at1", "rt1"}}))
		at, err := manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: time.Unix(100000, 0)})
		require.NoError(t, err)
		rt, err := manager.CreateRefreshToken(ctx, at.ID, time.Unix(100000, 0))
		require.NoError(t, err)
		require.Equal(t, "rt1", rt.ID)
		require.Equal(t, "at1", rt.AccessTokenID)
		return manager, store
	}

	t.Run("graced revocation stays usable until the window closes", func(t *testing.T) {
		clock := newFakeClock(1000)
		manager, store := issue(t, StaticSettings{RefreshTokenGracePeriod: 60 * time.Second}, clock)

		require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
		assert.Equal(t, time.Unix(1060, 0).UTC(), store.refresh["rt1"].ExpiresAt.UTC())

		clock.Set(1030)
		revoked, err := manager.IsRefreshTokenRevoked(ctx, "rt1")
		require.NoError(t, err)
		assert.False(t, revoked)

		clock.Set(1059)
		revoked, err = manager.IsRefreshTokenRevoked(ctx, "rt1")
		require.NoError(t, err)
		assert.False(t, revoked)

		clock.Set(1060)
		revoked, err = manager.IsRefreshTokenRevoked(ctx, "rt1")
		require.NoError(t, err)
		assert.True(t, revoked)

		clock.Set(1061)
		revoked, err = manager.IsRefreshTokenRevoked(ctx, "rt1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("zero grace period deletes immediately", func(t *testing.T) {
		clock := newFakeClock(1000)
		manager, store := issue(t, StaticSettings{}, clock)

		require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
		_, exists := store.refresh["rt1"]
		assert.False(t, exists)

		revoked, err := manager.IsRefreshTokenRevoked(ctx, "rt1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("grace period is read at revocation time", func(t *testing.T) {
		clock := newFakeClock(1000)
		settings := &mutableSettings{}
		manager, store := issue(t, settings, clock)

		settings.SetGracePeriod(30 * time.Second)
		require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
		assert.Equal(t, time.Unix(1030, 0).UTC(), store.refresh["rt1"].ExpiresAt.UTC())
	})

	t.Run("repeated revocation does not extend the window", func(t *testing.T) {
		clock := newFakeClock(1000)
		manager, store := issue(t, StaticSettings{RefreshTokenGracePeriod: 60 * time.Second}, clock)

		require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
		clock.Set(1030)
		require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
		assert.Equal(t, time.Unix(1060, 0).UTC(), store.refresh["rt1"].ExpiresAt.UTC())
	})

	t.Run("revoking an unknown refresh token is a no-op", func(t *testing.T) {
		clock := newFakeClock(1000)
		manager, _ := issue(t, StaticSettings{RefreshTokenGracePeriod: time.Minute}, clock)
		assert.NoError(t, manager.RevokeRefreshToken(ctx, "missing"))
	})
}

func TestLookupRefreshToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	store := newMemoryTokens()
	manager := newTestManager(store, StaticSettings{RefreshTokenGracePeriod: 10 * time.Second}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"rt1"}}))

	_, err := manager.CreateRefreshToken(ctx, "at1", time.Unix(5000, 0))
	require.NoError(t, err)

	token, err := manager.LookupRefreshToken(ctx, "rt1")
	require.NoError(t, err)
	assert.Equal(t, "at1", token.AccessTokenID)

	require.NoError(t, manager.RevokeRefreshToken(ctx, "rt1"))
	_, err = manager.LookupRefreshToken(ctx, "rt1")
	assert.NoError(t, err, "graced token is still usable")

	clock.Set(1010)
	_, err = manager.LookupRefreshToken(ctx, "rt1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	store := newMemoryTokens()
	manager := newTestManager(store, StaticSettings{RefreshTokenGracePeriod: 10 * time.Second}, clock,
		WithIDGenerator(&sequenceIDs{ids: []string{"old", "live", "rt-graced", "rt-live"}}))

	_, err := manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: time.Unix(999, 0)})
	require.NoError(t, err)
	_, err = manager.CreateAccessToken(ctx, AccessTokenRequest{ClientID: "c1", ExpiresAt: time.Unix(9999, 0)})
	require.NoError(t, err)
	_, err = manager.CreateRefreshToken(ctx, "live", time.Unix(9999, 0))
	require.NoError(t, err)
	_, err = manager.CreateRefreshToken(ctx, "live", time.Unix(9999, 0))
	require.NoError(t, err)

	require.NoError(t, manager.RevokeRefreshToken(ctx, "rt-graced"))

	n, err := manager.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the expired access token goes while the grace window is open")

	clock.Set(1010)
	n, err = manager.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, store.refresh, "rt-live")
	assert.NotContains(t, store.refresh, "rt-graced")
}

func TestRevocationNotifierFailureIsNotReturned(t *testing.T) {
	store := newMemoryTokens()
	notifier := &failingNotifier{}
	recorder := newCountingRecorder()
	manager := newTestManager(store, StaticSettings{}, newFakeClock(1000),
		WithRevocationNotifier(notifier),
		WithRecorder(recorder))

	assert.NoError(t, manager.RevokeAccessToken(context.Background(), "tok1"))
	assert.NoError(t, manager.RevokeRefreshToken(context.Background(), "rt1"))
	assert.Equal(t, 2, notifier.calls)
	assert.Equal(t, 1, recorder.revoked[KindAccessToken])
	assert.Equal(t, 1, recorder.revoked[KindRefreshToken])
}
