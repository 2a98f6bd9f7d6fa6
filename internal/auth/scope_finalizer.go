package auth

import "slices"

// ScopeFinalizer computes the scopes bound to a token about to be issued.
type ScopeFinalizer struct {
	settings SettingsProvider
}

// NewScopeFinalizer creates a ScopeFinalizer.
func NewScopeFinalizer(settings SettingsProvider) *ScopeFinalizer {
	return &ScopeFinalizer{settings: settings}
}

// FinalizeScopes returns the requested scopes the client may hold. A client is
// restricted when it has an allow-list and clients are limited to scopes; a
// restricted client gets the intersection, with disallowed scopes dropped
// silently. Callers that need a hard failure compare lengths themselves.
//
// grantType and userID are accepted for grant- or user-specific policies; no
// such policy exists yet, so the result depends only on the client.
func (f *ScopeFinalizer) FinalizeScopes(requested []string, grantType string, client *Client, userID *string) []string {
	if client == nil || client.AllowedScopes == nil || !f.settings.Settings().LimitClientsToScopes {
		return requested
	}

	finalized := make([]string, 0, len(requested))
	for _, scope := range requested {
		if slices.Contains(client.AllowedScopes, scope) {
			finalized = append(finalized, scope)
		}
	}
	return finalized
}
