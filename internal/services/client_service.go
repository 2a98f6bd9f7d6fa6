package services

import (
	"context"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClientService manages the client registry. It also serves as the
// ClientRepository the authenticator reads from.
type ClientService interface {
	auth.ClientRepository
	CreateClient(ctx context.Context, client *models.OAuthClient) error
	ListClients(ctx context.Context) ([]models.OAuthClient, error)
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
	DeleteClient(ctx context.Context, id string) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

// CreateClient stores the client together with its redirect URIs, scopes and
// grants. Child rows get their ClientID from the client.
func (s *clientService) CreateClient(ctx context.Context, client *models.OAuthClient) error {
	for i := range client.RedirectURIs {
		client.RedirectURIs[i].ClientID = client.ID
	}
	for i := range client.Scopes {
		client.Scopes[i].ClientID = client.ID
	}
	for i := range client.Grants {
		client.Grants[i].ClientID = client.ID
	}
	return translateError(s.db.WithContext(ctx).Create(client).Error)
}

func (s *clientService) ListClients(ctx context.Context) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	err := s.db.WithContext(ctx).
		Preload(clause.Associations).
		Order("created_at").
		Find(&clients).Error
	if err != nil {
		return nil, translateError(err)
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	err := s.db.WithContext(ctx).
		Preload(clause.Associations).
		Where("id = ?", id).
		First(&client).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &client, nil
}

// DeleteClient soft-deletes the client. Its tokens stay until they expire or
// are pruned, but the client can no longer authenticate.
func (s *clientService) DeleteClient(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OAuthClient{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *clientService) FindClient(ctx context.Context, id string) (*auth.Client, error) {
	client, err := s.GetClientByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToAuthClient(client), nil
}

// ToAuthClient converts a stored client into the form the token core works with.
func ToAuthClient(c *models.OAuthClient) *auth.Client {
	client := &auth.Client{
		ID:         c.ID,
		Name:       c.Name,
		SecretHash: c.SecretHash,
	}
	for _, u := range c.RedirectURIs {
		client.RedirectURIs = append(client.RedirectURIs, u.URI)
	}
	if c.RestrictScopes {
		client.AllowedScopes = make([]string, 0, len(c.Scopes))
		for _, s := range c.Scopes {
			client.AllowedScopes = append(client.AllowedScopes, s.ScopeID)
		}
	}
	if c.RestrictGrants {
		client.AllowedGrantTypes = make([]string, 0, len(c.Grants))
		for _, g := range c.Grants {
			client.AllowedGrantTypes = append(client.AllowedGrantTypes, g.GrantType)
		}
	}
	return client
}
