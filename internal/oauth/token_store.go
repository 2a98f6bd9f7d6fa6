package oauth

import (
	"context"
	"errors"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	internalmodels "github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/models"
)

// tokenStore adapts the lifecycle manager and the code service to the
// engine's oauth2.TokenStore. A nil TokenInfo with a nil error tells the
// engine the token is unknown or no longer valid.
type tokenStore struct {
	tokens *auth.TokenManager
	codes  services.CodeService
	codec  *TokenCodec
	delim  string
	clock  auth.Clock
}

// Create stores authorization codes. Access and refresh tokens were already
// persisted when they were generated.
func (s *tokenStore) Create(ctx context.Context, info oauth2.TokenInfo) error {
	code := info.GetCode()
	if code == "" {
		return nil
	}
	return s.codes.CreateCode(ctx, &internalmodels.OAuthCode{
		Code:                code,
		ClientID:            info.GetClientID(),
		UserID:              info.GetUserID(),
		Scopes:              info.GetScope(),
		RedirectURI:         info.GetRedirectURI(),
		CodeChallenge:       info.GetCodeChallenge(),
		CodeChallengeMethod: info.GetCodeChallengeMethod().String(),
		CreatedAt:           info.GetCodeCreateAt(),
		ExpiresAt:           info.GetCodeCreateAt().Add(info.GetCodeExpiresIn()),
	})
}

func (s *tokenStore) RemoveByCode(ctx context.Context, code string) error {
	return s.codes.DeleteCode(ctx, code)
}

func (s *tokenStore) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	row, err := s.codes.GetCode(ctx, code)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Token{
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		RedirectURI:         row.RedirectURI,
		Scope:               row.Scopes,
		Code:                row.Code,
		CodeCreateAt:        row.CreatedAt,
		CodeExpiresIn:       row.ExpiresAt.Sub(row.CreatedAt),
		CodeChallenge:       row.CodeChallenge,
		CodeChallengeMethod: row.CodeChallengeMethod,
	}, nil
}

// RemoveByAccess revokes an access token. access is either the JWT or the
// bare token id that GetByRefresh reports as the linked access token.
func (s *tokenStore) RemoveByAccess(ctx context.Context, access string) error {
	id, err := s.codec.Identifier(access)
	if err != nil {
		return nil
	}
	return s.tokens.RevokeAccessToken(ctx, id)
}

// RemoveByRefresh revokes a refresh token, subject to the grace period.
func (s *tokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	id, err := s.codec.Identifier(refresh)
	if err != nil {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, id)
}

func (s *tokenStore) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	claims, err := s.codec.ParseAccess(access)
	if err != nil {
		return nil, nil
	}
	at, err := s.tokens.LookupAccessToken(ctx, claims.ID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	info := &models.Token{
		ClientID:        at.ClientID,
		Scope:           auth.JoinScopes(at.Scopes, s.delim),
		Access:          access,
		AccessCreateAt:  at.CreatedAt,
		AccessExpiresIn: at.ExpiresAt.Sub(at.CreatedAt),
	}
	if at.UserID != nil {
		info.UserID = *at.UserID
	}
	return info, nil
}

// GetByRefresh admits a refresh token while it is not revoked, which includes
// a revoked token still inside its grace period. The reported refresh expiry
// is the stored one, so a graced token ends with its window.
func (s *tokenStore) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	claims, err := s.codec.ParseRefresh(refresh)
	if err != nil {
		return nil, nil
	}
	rt, err := s.tokens.LookupRefreshToken(ctx, claims.ID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &models.Token{
		ClientID:         claims.ClientID,
		UserID:           claims.UserID,
		Scope:            auth.JoinScopes(claims.Scopes(), s.delim),
		Access:           rt.AccessTokenID,
		Refresh:          refresh,
		RefreshCreateAt:  now,
		RefreshExpiresIn: rt.ExpiresAt.Sub(now),
	}, nil
}
