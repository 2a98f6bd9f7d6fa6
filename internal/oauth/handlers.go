package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	internalmodels "github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	log "github.com/sirupsen/logrus"
)

// HandleToken handles the token endpoint for every supported grant
// @Summary Token Endpoint
// @Description Obtain tokens with the client_credentials, password, authorization_code or refresh_token grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "client_credentials, password, authorization_code or refresh_token"
// @Param client_id formData string false "Client ID (or HTTP Basic)"
// @Param client_secret formData string false "Client secret (or HTTP Basic)"
// @Param scope formData string false "Requested scopes"
// @Param username formData string false "Resource owner email (password grant)"
// @Param password formData string false "Resource owner password (password grant)"
// @Param code formData string false "Authorization code (authorization_code grant)"
// @Param redirect_uri formData string false "Redirect URI (authorization_code grant)"
// @Param code_verifier formData string false "PKCE verifier (authorization_code grant)"
// @Param refresh_token formData string false "Refresh token (refresh_token grant)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	if err := o.server.HandleTokenRequest(c.Writer, c.Request); err != nil {
		log.WithError(err).Error("Token request failed")
	}
}

// HandleAuthorize handles the authorization endpoint. The resource owner
// signs in with HTTP Basic credentials.
// @Summary Authorization Endpoint
// @Description Issue an authorization code and redirect back to the client
// @Tags OAuth2
// @Param response_type query string true "Must be code"
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string true "Registered redirect URI"
// @Param scope query string false "Requested scopes"
// @Param state query string false "Opaque client state"
// @Param code_challenge query string false "PKCE challenge"
// @Param code_challenge_method query string false "plain or S256"
// @Success 302
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/authorize [get]
func (o *OAuthService) HandleAuthorize(c *gin.Context) {
	// errors about the client or redirect URI must not be sent to that URI
	client, err := o.clients.FindClient(c.Request.Context(), c.Query("client_id"))
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			log.WithError(err).Error("Client lookup failed")
		}
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(internalmodels.ErrInvalidClient, "unknown client"))
		return
	}
	if !client.HasRedirectURI(c.Query("redirect_uri")) {
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(internalmodels.ErrInvalidRequest, "redirect_uri is not registered for this client"))
		return
	}

	if err := o.server.HandleAuthorizeRequest(c.Writer, c.Request); err != nil {
		code := internalmodels.ErrInvalidRequest
		if _, known := oautherrors.Descriptions[err]; known {
			code = err.Error()
		}
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(code, err.Error()))
	}
}

// HandleRevoke implements token revocation (RFC 7009)
// @Summary Revocation Endpoint
// @Description Revoke an access or refresh token issued to the calling client
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param token formData string true "Token to revoke"
// @Param token_type_hint formData string false "access_token or refresh_token"
// @Success 200
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/revoke [post]
func (o *OAuthService) HandleRevoke(c *gin.Context) {
	clientID, secret := clientCredentials(c.Request)
	client, err := o.authenticator.Authenticate(c.Request.Context(), clientID, secret, "")
	if err != nil {
		respondClientError(c, err)
		return
	}

	raw := c.PostForm("token")
	if raw == "" {
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(internalmodels.ErrInvalidRequest, "token is required"))
		return
	}

	if err := o.revoke(c.Request.Context(), client, raw, c.PostForm("token_type_hint")); err != nil {
		if errors.Is(err, auth.ErrUnauthorizedClient) {
			c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(internalmodels.ErrUnauthorizedClient, "token was issued to another client"))
			return
		}
		log.WithError(err).Error("Token revocation failed")
		c.JSON(http.StatusServiceUnavailable, internalmodels.NewOAuth2Error(internalmodels.ErrServerError, "revocation could not be completed"))
		return
	}
	c.Status(http.StatusOK)
}

// revoke revokes raw when it is a token issued to client. Revoking a refresh
// token also revokes the access token issued with it. Unknown and malformed
// tokens are ignored.
func (o *OAuthService) revoke(ctx context.Context, client *auth.Client, raw, hint string) error {
	tryRefresh := func() (bool, error) {
		claims, err := o.codec.ParseRefresh(raw)
		if err != nil {
			return false, nil
		}
		if claims.ClientID != client.ID {
			return true, auth.ErrUnauthorizedClient
		}
		if err := o.tokens.RevokeRefreshToken(ctx, claims.ID); err != nil {
			return true, err
		}
		return true, o.tokens.RevokeAccessToken(ctx, claims.AccessTokenID)
	}
	tryAccess := func() (bool, error) {
		claims, err := o.codec.ParseAccess(raw)
		if err != nil {
			return false, nil
		}
		if claims.ClientID != client.ID {
			return true, auth.ErrUnauthorizedClient
		}
		return true, o.tokens.RevokeAccessToken(ctx, claims.ID)
	}

	order := []func() (bool, error){tryAccess, tryRefresh}
	if hint == "refresh_token" {
		slices.Reverse(order)
	}
	for _, try := range order {
		if handled, err := try(); handled || err != nil {
			return err
		}
	}
	return nil
}

// VerifyAccessToken checks a bearer token's signature and that the token it
// names is still live.
func (o *OAuthService) VerifyAccessToken(ctx context.Context, raw string) (*auth.AccessToken, error) {
	claims, err := o.codec.ParseAccess(raw)
	if err != nil {
		return nil, err
	}
	token, err := o.tokens.LookupAccessToken(ctx, claims.ID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, fmt.Errorf("%w: token has been revoked or has expired", ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	if token.ClientID != claims.ClientID {
		return nil, fmt.Errorf("%w: client mismatch", ErrInvalidToken)
	}
	return token, nil
}

// clientCredentials reads client credentials from HTTP Basic auth or the
// form body. An empty secret counts as no secret.
func clientCredentials(r *http.Request) (string, *string) {
	clientID, secret, ok := r.BasicAuth()
	if !ok {
		clientID = r.FormValue("client_id")
		secret = r.FormValue("client_secret")
	}
	if secret == "" {
		return clientID, nil
	}
	return clientID, &secret
}

func (o *OAuthService) clientInfoHandler(r *http.Request) (string, string, error) {
	clientID, secret := clientCredentials(r)
	if clientID == "" {
		return "", "", oautherrors.ErrInvalidClient
	}
	if _, err := o.authenticator.Authenticate(r.Context(), clientID, secret, r.FormValue("grant_type")); err != nil {
		return "", "", engineError(err)
	}
	if secret == nil {
		return clientID, "", nil
	}
	return clientID, *secret, nil
}

func (o *OAuthService) passwordAuthorizationHandler(ctx context.Context, clientID, username, password string) (string, error) {
	user, err := o.users.VerifyCredentials(ctx, username, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.WithField("client_id", clientID).Debug("Resource owner credentials rejected")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprint(user.ID), nil
}

// userAuthorizationHandler signs the resource owner in with HTTP Basic
// credentials. It answers 401 itself when they are missing or wrong.
func (o *OAuthService) userAuthorizationHandler(w http.ResponseWriter, r *http.Request) (string, error) {
	email, password, ok := r.BasicAuth()
	if ok {
		user, err := o.users.VerifyCredentials(r.Context(), email, password)
		if err == nil {
			return fmt.Sprint(user.ID), nil
		}
		if !errors.Is(err, services.ErrInvalidCredentials) {
			return "", err
		}
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"access_denied","error_description":"resource owner authentication required"}`))
	return "", nil
}

// engineError maps core client errors onto RFC 6749 errors.
func engineError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidClient), errors.Is(err, auth.ErrMissingCredentials):
		return oautherrors.ErrInvalidClient
	case errors.Is(err, auth.ErrUnauthorizedClient):
		return oautherrors.ErrUnauthorizedClient
	}
	return err
}

func respondClientError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidClient), errors.Is(err, auth.ErrMissingCredentials):
		c.Header("WWW-Authenticate", `Basic realm="oauth2"`)
		c.JSON(http.StatusUnauthorized, internalmodels.NewOAuth2Error(internalmodels.ErrInvalidClient, "client authentication failed"))
	default:
		log.WithError(err).Error("Client authentication failed")
		c.JSON(http.StatusServiceUnavailable, internalmodels.NewOAuth2Error(internalmodels.ErrServerError, "client authentication unavailable"))
	}
}

var _ oauth2.TokenStore = (*tokenStore)(nil)
var _ oauth2.ClientStore = (*clientStore)(nil)
var _ oauth2.AccessGenerate = (*accessGenerate)(nil)
