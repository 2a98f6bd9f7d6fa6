package controllers

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var supportedGrants = []string{"authorization_code", "password", "client_credentials", "refresh_token"}

type ClientController struct {
	clientService services.ClientService
	scopes        auth.ScopeRepository
}

func NewClientController(clientService services.ClientService, scopes auth.ScopeRepository) *ClientController {
	return &ClientController{clientService: clientService, scopes: scopes}
}

// CreateClientRequest registers a client. Leaving Scopes or GrantTypes out
// leaves the client unrestricted; an empty list restricts it to nothing.
type CreateClientRequest struct {
	Name         string    `json:"name" binding:"required"`
	Public       bool      `json:"public"`
	RedirectURIs []string  `json:"redirect_uris"`
	Scopes       *[]string `json:"scopes"`
	GrantTypes   *[]string `json:"grant_types"`
}

type ClientResponse struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Name         string    `json:"name"`
	Public       bool      `json:"public"`
	RedirectURIs []string  `json:"redirect_uris"`
	Scopes       []string  `json:"scopes,omitempty"`
	GrantTypes   []string  `json:"grant_types,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newClientResponse(client *models.OAuthClient) ClientResponse {
	view := services.ToAuthClient(client)
	return ClientResponse{
		ClientID:     client.ID,
		Name:         client.Name,
		Public:       !view.IsConfidential(),
		RedirectURIs: view.RedirectURIs,
		Scopes:       view.AllowedScopes,
		GrantTypes:   view.AllowedGrantTypes,
		CreatedAt:    client.CreatedAt,
	}
}

// CreateClient godoc
// @Summary Create OAuth2 client
// @Description Register a client. The secret of a confidential client is returned only once.
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body CreateClientRequest true "Client details"
// @Success 201 {object} ClientResponse
// @Failure 400 {object} models.APIError "Invalid request"
// @Failure 500 {object} models.APIError "Client creation failed"
// @Security BearerAuth
// @Router /api/v1/protected/admin/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	client := &models.OAuthClient{
		ID:   uuid.NewString(),
		Name: req.Name,
	}
	for _, uri := range req.RedirectURIs {
		client.RedirectURIs = append(client.RedirectURIs, models.OAuthClientRedirectURI{URI: uri})
	}
	if req.GrantTypes != nil {
		client.RestrictGrants = true
		for _, grant := range *req.GrantTypes {
			if !slices.Contains(supportedGrants, grant) {
				c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "unsupported grant type",
					map[string]any{"grant_type": grant}))
				return
			}
			client.Grants = append(client.Grants, models.OAuthClientGrant{GrantType: grant})
		}
	}
	if req.Scopes != nil {
		client.RestrictScopes = true
		for _, scope := range *req.Scopes {
			if _, err := cc.scopes.FindScope(c.Request.Context(), scope); err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrUnknownScope, "unknown scope",
						map[string]any{"scope": scope}))
					return
				}
				log.WithError(err).Error("Scope lookup failed")
				c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "client creation failed"))
				return
			}
			client.Scopes = append(client.Scopes, models.OAuthClientScope{ScopeID: scope})
		}
	}

	var secret string
	if !req.Public {
		secret = uuid.NewString()
		hash, err := auth.HashSecret(secret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "secret generation failed"))
			return
		}
		client.SecretHash = &hash
	}

	if err := cc.clientService.CreateClient(c.Request.Context(), client); err != nil {
		log.WithError(err).Error("Client creation failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "client creation failed"))
		return
	}

	log.WithFields(log.Fields{
		"client_id": client.ID,
		"public":    req.Public,
	}).Info("Client registered")

	resp := newClientResponse(client)
	resp.ClientSecret = secret
	c.JSON(http.StatusCreated, resp)
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} ClientResponse
// @Failure 500 {object} models.APIError "Failed to retrieve clients"
// @Security BearerAuth
// @Router /api/v1/protected/admin/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.ListClients(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list clients")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "failed to retrieve clients"))
		return
	}

	resp := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		resp = append(resp, newClientResponse(&clients[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetClient godoc
// @Summary Get OAuth2 client
// @Tags OAuth2 Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} ClientResponse
// @Failure 404 {object} models.APIError "Client not found"
// @Security BearerAuth
// @Router /api/v1/protected/admin/clients/{id} [get]
func (cc *ClientController) GetClient(c *gin.Context) {
	client, err := cc.clientService.GetClientByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err, models.ErrClientNotFound, "client not found")
		return
	}
	c.JSON(http.StatusOK, newClientResponse(client))
}

// DeleteClient godoc
// @Summary Delete OAuth2 client
// @Description The client can no longer authenticate. Issued tokens remain until they expire or are revoked.
// @Tags OAuth2 Clients
// @Param id path string true "Client ID"
// @Success 204 "Client deleted successfully"
// @Failure 404 {object} models.APIError "Client not found"
// @Security BearerAuth
// @Router /api/v1/protected/admin/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	clientID := c.Param("id")
	if err := cc.clientService.DeleteClient(c.Request.Context(), clientID); err != nil {
		respondLookupError(c, err, models.ErrClientNotFound, "client not found")
		return
	}

	log.WithField("client_id", clientID).Info("Client deleted")
	c.Status(http.StatusNoContent)
}

func respondLookupError(c *gin.Context, err error, notFoundCode, message string) {
	if errors.Is(err, auth.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.NewAPIError(notFoundCode, message))
		return
	}
	log.WithError(err).Error("Lookup failed")
	c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "lookup failed"))
}
