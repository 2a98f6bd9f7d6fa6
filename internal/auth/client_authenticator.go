package auth

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// ClientAuthenticator admits or rejects a client starting a token exchange.
type ClientAuthenticator struct {
	clients  ClientRepository
	settings SettingsProvider
	recorder Recorder
}

// NewClientAuthenticator creates a ClientAuthenticator. recorder may be nil.
func NewClientAuthenticator(clients ClientRepository, settings SettingsProvider, recorder Recorder) *ClientAuthenticator {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ClientAuthenticator{
		clients:  clients,
		settings: settings,
		recorder: recorder,
	}
}

// Authenticate returns the client identified by clientID.
//
// Confidential clients must present their secret: a nil secret fails with
// ErrMissingCredentials, a wrong one with ErrInvalidClient. Unknown clients
// also fail with ErrInvalidClient. Public clients are never challenged. When
// clients are limited to grants and grantType is not empty, a client outside
// its grant list fails with ErrUnauthorizedClient.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, clientID string, clientSecret *string, grantType string) (*Client, error) {
	logger := log.WithFields(log.Fields{
		"client_id":  clientID,
		"grant_type": grantType,
	})

	client, err := a.clients.FindClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if clientSecret != nil {
				burnSecretCheck(*clientSecret)
			}
			logger.Debug("Client rejected: unknown client")
			a.recorder.ClientRejected("invalid_client")
			return nil, ErrInvalidClient
		}
		return nil, persistenceError("find client", err)
	}

	if client.IsConfidential() {
		if clientSecret == nil {
			logger.Debug("Client rejected: no secret presented")
			a.recorder.ClientRejected("missing_credentials")
			return nil, ErrMissingCredentials
		}
		if !VerifySecret(*client.SecretHash, *clientSecret) {
			logger.Debug("Client rejected: secret mismatch")
			a.recorder.ClientRejected("invalid_client")
			return nil, ErrInvalidClient
		}
	}

	if grantType != "" && a.settings.Settings().LimitClientsToGrants && !client.AllowsGrant(grantType) {
		logger.Debug("Client rejected: grant type not allowed")
		a.recorder.ClientRejected("unauthorized_client")
		return nil, ErrUnauthorizedClient
	}

	return client, nil
}
