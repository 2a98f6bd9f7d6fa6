// Package oauth runs the OAuth2 grant flows on top of go-oauth2, with every
// decision about clients, scopes and token lifecycles delegated to the core
// in internal/auth.
package oauth

import (
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	log "github.com/sirupsen/logrus"
)

// Config holds the engine settings that are fixed at start-up.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration
	ScopeDelimiter  string
	DefaultScope    string
	SigningKey      []byte
}

// Dependencies are the collaborators the engine delegates to.
type Dependencies struct {
	Tokens   *auth.TokenManager
	Clients  auth.ClientRepository
	Scopes   auth.ScopeRepository
	Users    services.UserService
	Codes    services.CodeService
	Settings auth.SettingsProvider
	Recorder auth.Recorder
	Clock    auth.Clock
}

// OAuthService owns the configured go-oauth2 server.
type OAuthService struct {
	server        *server.Server
	manager       *manage.Manager
	tokens        *auth.TokenManager
	clients       auth.ClientRepository
	scopes        auth.ScopeRepository
	users         services.UserService
	authenticator *auth.ClientAuthenticator
	finalizer     *auth.ScopeFinalizer
	codec         *TokenCodec
	cfg           Config
}

func NewOAuthService(cfg Config, deps Dependencies) *OAuthService {
	if cfg.ScopeDelimiter == "" {
		cfg.ScopeDelimiter = " "
	}
	clock := deps.Clock
	if clock == nil {
		clock = auth.SystemClock{}
	}
	codec := NewTokenCodec(cfg.SigningKey)

	manager := manage.NewDefaultManager()
	manager.SetAuthorizeCodeExp(cfg.AuthCodeTTL)
	// no refresh tokens for client credentials (RFC 6749 section 4.4.3)
	manager.SetClientTokenCfg(&manage.Config{
		AccessTokenExp: cfg.AccessTokenTTL,
	})
	userGrant := &manage.Config{
		AccessTokenExp:    cfg.AccessTokenTTL,
		RefreshTokenExp:   cfg.RefreshTokenTTL,
		IsGenerateRefresh: true,
	}
	manager.SetPasswordTokenCfg(userGrant)
	manager.SetAuthorizeCodeTokenCfg(userGrant)
	manager.SetRefreshTokenCfg(&manage.RefreshingConfig{
		AccessTokenExp:     cfg.AccessTokenTTL,
		RefreshTokenExp:    cfg.RefreshTokenTTL,
		IsGenerateRefresh:  true,
		IsResetRefreshTime: true,
		IsRemoveAccess:     true,
		IsRemoveRefreshing: true,
	})
	manager.MapAccessGenerate(&accessGenerate{
		tokens: deps.Tokens,
		codec:  codec,
		delim:  cfg.ScopeDelimiter,
	})
	manager.MapTokenStorage(&tokenStore{
		tokens: deps.Tokens,
		codes:  deps.Codes,
		codec:  codec,
		delim:  cfg.ScopeDelimiter,
		clock:  clock,
	})
	manager.MapClientStorage(&clientStore{clients: deps.Clients})
	manager.SetValidateURIHandler(validateRedirectURI)

	o := &OAuthService{
		manager:       manager,
		tokens:        deps.Tokens,
		clients:       deps.Clients,
		scopes:        deps.Scopes,
		users:         deps.Users,
		authenticator: auth.NewClientAuthenticator(deps.Clients, deps.Settings, deps.Recorder),
		finalizer:     auth.NewScopeFinalizer(deps.Settings),
		codec:         codec,
		cfg:           cfg,
	}

	srv := server.NewServer(server.NewConfig(), manager)
	srv.SetAllowGetAccessRequest(false)
	srv.SetAllowedResponseType(oauth2.Code)
	srv.SetAllowedGrantType(
		oauth2.AuthorizationCode,
		oauth2.PasswordCredentials,
		oauth2.ClientCredentials,
		oauth2.Refreshing,
	)
	srv.SetClientInfoHandler(o.clientInfoHandler)
	srv.SetClientScopeHandler(o.clientScopeHandler)
	srv.SetRefreshingScopeHandler(o.refreshingScopeHandler)
	srv.SetAuthorizeScopeHandler(o.authorizeScopeHandler)
	srv.SetPasswordAuthorizationHandler(o.passwordAuthorizationHandler)
	srv.SetUserAuthorizationHandler(o.userAuthorizationHandler)
	srv.SetInternalErrorHandler(func(err error) *oautherrors.Response {
		log.WithError(err).Error("OAuth2 internal error")
		return nil
	})
	srv.SetResponseErrorHandler(func(re *oautherrors.Response) {
		log.WithFields(log.Fields{
			"error":       re.Error,
			"description": re.Description,
		}).Debug("OAuth2 error response")
	})
	o.server = srv

	return o
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

// Codec returns the codec used for issued tokens.
func (o *OAuthService) Codec() *TokenCodec {
	return o.codec
}
