package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Context keys set by OAuth2Auth.
const (
	ContextAccessToken = "accessToken"
	ContextClientID    = "clientID"
	ContextUserID      = "userID"
	ContextScopes      = "scopes"
	ContextAuthType    = "auth_type"
)

// TokenVerifier resolves a bearer token to the live access token it names.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (*auth.AccessToken, error)
}

// OAuth2Auth admits requests carrying a live access token (RFC 6750).
// Revoked tokens are rejected on the next request, not at JWT expiry.
func OAuth2Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// RFC 6750 section 3.1: no error code when credentials are simply absent
			c.Header("WWW-Authenticate", `Bearer realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewOAuth2Error(models.ErrInvalidRequest,
				"Missing Authorization header. A valid Bearer token is required."))
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			respondWithOAuth2Error(c, http.StatusBadRequest, models.ErrInvalidRequest,
				"Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
			return
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, models.ErrInvalidToken, "Bearer token is empty")
			return
		}

		token, err := verifier.VerifyAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			if auth.IsPersistenceError(err) {
				log.WithError(err).Error("Token verification unavailable")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.NewOAuth2Error(models.ErrServerError,
					"token verification is temporarily unavailable"))
				return
			}
			respondWithOAuth2Error(c, http.StatusUnauthorized, models.ErrInvalidToken, err.Error())
			return
		}

		setTokenContext(c, token)
		c.Next()
	}
}

func setTokenContext(c *gin.Context, token *auth.AccessToken) {
	c.Set(ContextAccessToken, token)
	c.Set(ContextClientID, token.ClientID)
	c.Set(ContextScopes, token.Scopes)
	c.Set(ContextAuthType, token.OwnerType())
	if token.UserID != nil {
		c.Set(ContextUserID, *token.UserID)
	}
}

// AccessTokenFrom returns the token admitted by OAuth2Auth.
func AccessTokenFrom(c *gin.Context) (*auth.AccessToken, bool) {
	v, ok := c.Get(ContextAccessToken)
	if !ok {
		return nil, false
	}
	token, ok := v.(*auth.AccessToken)
	return token, ok
}

// respondWithOAuth2Error responds with RFC 6750 compliant error format
func respondWithOAuth2Error(c *gin.Context, status int, errorCode, description string) {
	c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error=%q, error_description=%q`, errorCode, description))
	c.AbortWithStatusJSON(status, models.NewOAuth2Error(errorCode, description))
}
