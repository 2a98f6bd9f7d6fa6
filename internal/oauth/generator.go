package oauth

import (
	"context"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/go-oauth2/oauth2/v4"
)

// accessGenerate issues tokens for the engine. Records are persisted here,
// through the lifecycle manager, so every token id is generated and stored
// exactly as the manager dictates; the engine's later TokenStore.Create call
// has nothing left to do for tokens.
type accessGenerate struct {
	tokens *auth.TokenManager
	codec  *TokenCodec
	delim  string
}

func (g *accessGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic, isGenRefresh bool) (string, string, error) {
	ti := data.TokenInfo

	req := auth.AccessTokenRequest{
		ClientID:  data.Client.GetID(),
		Scopes:    auth.ParseScopes(ti.GetScope(), g.delim),
		ExpiresAt: ti.GetAccessCreateAt().Add(ti.GetAccessExpiresIn()),
	}
	if data.UserID != "" {
		userID := data.UserID
		req.UserID = &userID
	}

	at, err := g.tokens.CreateAccessToken(ctx, req)
	if err != nil {
		return "", "", err
	}
	access, err := g.codec.SignAccess(at)
	if err != nil {
		return "", "", err
	}
	if !isGenRefresh {
		return access, "", nil
	}

	rt, err := g.tokens.CreateRefreshToken(ctx, at.ID, ti.GetRefreshCreateAt().Add(ti.GetRefreshExpiresIn()))
	if err != nil {
		return "", "", err
	}
	refresh, err := g.codec.SignRefresh(rt, at)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
