package oauth

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	log "github.com/sirupsen/logrus"
)

// errUnknownScope marks a request naming a scope missing from the directory.
var errUnknownScope = errors.New("unknown scope")

// requestedScopes parses raw, falls back to the default scope and checks every
// scope against the directory.
func (o *OAuthService) requestedScopes(ctx context.Context, raw string) ([]string, error) {
	scopes := auth.ParseScopes(raw, o.cfg.ScopeDelimiter)
	if len(scopes) == 0 {
		scopes = auth.ParseScopes(o.cfg.DefaultScope, o.cfg.ScopeDelimiter)
	}
	for _, id := range scopes {
		if _, err := o.scopes.FindScope(ctx, id); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				log.WithField("scope", id).Debug("Unknown scope requested")
				return nil, errUnknownScope
			}
			return nil, err
		}
	}
	return scopes, nil
}

// finalize runs the scope finalizer for a client and returns the scope
// string to bind to the token.
func (o *OAuthService) finalize(ctx context.Context, raw, grantType, clientID string, userID *string) (string, error) {
	requested, err := o.requestedScopes(ctx, raw)
	if err != nil {
		return "", err
	}
	client, err := o.clients.FindClient(ctx, clientID)
	if errors.Is(err, auth.ErrNotFound) {
		return "", oautherrors.ErrInvalidClient
	}
	if err != nil {
		return "", err
	}

	final := o.finalizer.FinalizeScopes(requested, grantType, client, userID)
	if len(final) < len(requested) {
		log.WithFields(log.Fields{
			"client_id": clientID,
			"requested": requested,
			"granted":   final,
		}).Debug("Scopes outside the client allow-list dropped")
	}
	return auth.JoinScopes(final, o.cfg.ScopeDelimiter), nil
}

func (o *OAuthService) clientScopeHandler(tgr *oauth2.TokenGenerateRequest) (bool, error) {
	ctx := context.Background()
	grantType := ""
	if tgr.Request != nil {
		ctx = tgr.Request.Context()
		grantType = tgr.Request.FormValue("grant_type")
	}
	var userID *string
	if tgr.UserID != "" {
		userID = &tgr.UserID
	}

	scope, err := o.finalize(ctx, tgr.Scope, grantType, tgr.ClientID, userID)
	if errors.Is(err, errUnknownScope) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tgr.Scope = scope
	return true, nil
}

// authorizeScopeHandler finalizes the scopes bound to an authorization code.
// The engine keeps the raw request scope when handed an empty string, so a
// non-empty request filtered down to nothing is refused.
func (o *OAuthService) authorizeScopeHandler(w http.ResponseWriter, r *http.Request) (string, error) {
	raw := r.FormValue("scope")
	scope, err := o.finalize(r.Context(), raw, string(oauth2.AuthorizationCode), r.FormValue("client_id"), nil)
	switch {
	case errors.Is(err, errUnknownScope):
		return "", oautherrors.ErrInvalidScope
	case err != nil:
		return "", err
	case scope == "" && raw != "":
		return "", oautherrors.ErrInvalidScope
	}
	return scope, nil
}

// refreshingScopeHandler allows narrowing the scope on refresh but never
// widening it (RFC 6749 section 6).
func (o *OAuthService) refreshingScopeHandler(tgr *oauth2.TokenGenerateRequest, oldScope string) (bool, error) {
	granted := auth.ParseScopes(oldScope, o.cfg.ScopeDelimiter)
	for _, scope := range auth.ParseScopes(tgr.Scope, o.cfg.ScopeDelimiter) {
		if !slices.Contains(granted, scope) {
			return false, nil
		}
	}
	return true, nil
}
