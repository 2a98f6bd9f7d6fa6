package controllers

import (
	"net/http"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/middleware"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/gin-gonic/gin"
)

type TokenInfoResponse struct {
	ClientID  string    `json:"client_id"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenInfo godoc
// @Summary Describe the presented access token
// @Tags OAuth2
// @Produce json
// @Success 200 {object} TokenInfoResponse
// @Failure 401 {object} models.OAuth2Error
// @Security BearerAuth
// @Router /api/v1/protected/tokeninfo [get]
func TokenInfo(c *gin.Context) {
	token, ok := middleware.AccessTokenFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewOAuth2Error(models.ErrInvalidToken, "request is not authenticated"))
		return
	}

	scopes := token.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, TokenInfoResponse{
		ClientID:  token.ClientID,
		OwnerType: token.OwnerType(),
		OwnerID:   token.OwnerID(),
		Scopes:    scopes,
		ExpiresAt: token.ExpiresAt,
	})
}
