package oauth

import (
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAccessToken() *auth.AccessToken {
	uid := "42"
	now := time.Now().UTC().Truncate(time.Second)
	return &auth.AccessToken{
		ID:        "at-1",
		ClientID:  "app",
		UserID:    &uid,
		Scopes:    []string{"read", "write"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestCodecAccessRoundTrip(t *testing.T) {
	codec := NewTokenCodec([]byte(testSigningKey))
	at := sampleAccessToken()

	raw, err := codec.SignAccess(at)
	require.NoError(t, err)

	claims, err := codec.ParseAccess(raw)
	require.NoError(t, err)
	assert.Equal(t, "at-1", claims.ID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "app", claims.ClientID)
	assert.Equal(t, []string{"read", "write"}, claims.Scopes())

	_, err = codec.ParseRefresh(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodecRefreshCarriesAccessID(t *testing.T) {
	codec := NewTokenCodec([]byte(testSigningKey))
	at := sampleAccessToken()
	rt := &auth.RefreshToken{ID: "rt-1", AccessTokenID: at.ID, CreatedAt: at.CreatedAt, ExpiresAt: at.CreatedAt.Add(24 * time.Hour)}

	raw, err := codec.SignRefresh(rt, at)
	require.NoError(t, err)

	claims, err := codec.ParseRefresh(raw)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", claims.ID)
	assert.Equal(t, "at-1", claims.AccessTokenID)
	assert.Equal(t, "42", claims.UserID)

	_, err = codec.ParseAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodecRejects(t *testing.T) {
	codec := NewTokenCodec([]byte(testSigningKey))

	t.Run("expired", func(t *testing.T) {
		at := sampleAccessToken()
		at.CreatedAt = at.CreatedAt.Add(-2 * time.Hour)
		at.ExpiresAt = at.CreatedAt.Add(time.Hour)
		raw, err := codec.SignAccess(at)
		require.NoError(t, err)
		_, err = codec.ParseAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)

		// the id is still recoverable for revocation
		id, err := codec.Identifier(raw)
		require.NoError(t, err)
		assert.Equal(t, "at-1", id)
	})

	t.Run("wrong key", func(t *testing.T) {
		raw, err := NewTokenCodec([]byte("another-key-another-key-another-key")).SignAccess(sampleAccessToken())
		require.NoError(t, err)
		_, err = codec.ParseAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = codec.Identifier(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := codec.accessClaims(sampleAccessToken(), tokenUseAccess)
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
		require.NoError(t, err)
		_, err = codec.ParseAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIdentifierPassesBareIDs(t *testing.T) {
	codec := NewTokenCodec([]byte(testSigningKey))
	id, err := codec.Identifier("9b2d7c4e-1111-2222-3333-444455556666")
	require.NoError(t, err)
	assert.Equal(t, "9b2d7c4e-1111-2222-3333-444455556666", id)
}
