package services

import (
	"context"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeService(t *testing.T) {
	svc := NewCodeService(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, svc.CreateCode(ctx, &models.OAuthCode{
		Code:        "abc",
		ClientID:    "c1",
		UserID:      "1",
		RedirectURI: "https://app.example/cb",
		ExpiresAt:   time.Now().Add(time.Minute),
	}))
	require.NoError(t, svc.CreateCode(ctx, &models.OAuthCode{
		Code:      "stale",
		ClientID:  "c1",
		UserID:    "1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	code, err := svc.GetCode(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/cb", code.RedirectURI)

	_, err = svc.GetCode(ctx, "stale")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, svc.DeleteCode(ctx, "abc"))
	_, err = svc.GetCode(ctx, "abc")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
