package oauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// ErrInvalidToken is returned for bearer tokens that fail verification or
// are no longer live.
var ErrInvalidToken = errors.New("invalid_token")

// AccessClaims are carried by access token JWTs. The jti is the access token id.
type AccessClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	UserID   string `json:"uid,omitempty"`
	Scope    string `json:"scope,omitempty"`
	TokenUse string `json:"token_use"`
}

// Scopes returns the scope claim as a list.
func (c *AccessClaims) Scopes() []string {
	return auth.ParseScopes(c.Scope, " ")
}

// RefreshClaims are carried by refresh token JWTs. The jti is the refresh
// token id; the remaining claims let a refresh go ahead after the access
// token it was issued with has been revoked.
type RefreshClaims struct {
	AccessClaims
	AccessTokenID string `json:"ati"`
}

// TokenCodec signs and verifies the JWTs handed out to clients.
type TokenCodec struct {
	key    []byte
	method jwt.SigningMethod
}

// NewTokenCodec creates an HS512 codec.
func NewTokenCodec(key []byte) *TokenCodec {
	return &TokenCodec{key: key, method: jwt.SigningMethodHS512}
}

func (c *TokenCodec) accessClaims(t *auth.AccessToken, use string) AccessClaims {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.ID,
			Subject:   t.OwnerID(),
			Audience:  jwt.ClaimStrings{t.ClientID},
			IssuedAt:  jwt.NewNumericDate(t.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
		ClientID: t.ClientID,
		Scope:    auth.JoinScopes(t.Scopes, " "),
		TokenUse: use,
	}
	if t.UserID != nil {
		claims.UserID = *t.UserID
	}
	return claims
}

// SignAccess returns the bearer token for t.
func (c *TokenCodec) SignAccess(t *auth.AccessToken) (string, error) {
	claims := c.accessClaims(t, tokenUseAccess)
	return jwt.NewWithClaims(c.method, claims).SignedString(c.key)
}

// SignRefresh returns the refresh token for rt, which was issued alongside at.
func (c *TokenCodec) SignRefresh(rt *auth.RefreshToken, at *auth.AccessToken) (string, error) {
	claims := RefreshClaims{
		AccessClaims:  c.accessClaims(at, tokenUseRefresh),
		AccessTokenID: at.ID,
	}
	claims.ID = rt.ID
	claims.IssuedAt = jwt.NewNumericDate(rt.CreatedAt)
	claims.ExpiresAt = jwt.NewNumericDate(rt.ExpiresAt)
	return jwt.NewWithClaims(c.method, claims).SignedString(c.key)
}

// ParseAccess verifies an access token JWT.
func (c *TokenCodec) ParseAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenUse != tokenUseAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	return &claims, nil
}

// ParseRefresh verifies a refresh token JWT.
func (c *TokenCodec) ParseRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenUse != tokenUseRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	return &claims, nil
}

// Identifier returns the token id behind raw, which is either a JWT signed by
// this codec or already a bare id. Expired JWTs still yield their id.
func (c *TokenCodec) Identifier(raw string) (string, error) {
	if strings.Count(raw, ".") != 2 {
		return raw, nil
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.ID, nil
}

func (c *TokenCodec) parse(raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (any, error) {
	// algorithm pinning is done by WithValidMethods; this guards the key type
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.key, nil
}
