package controllers

import (
	"errors"
	"net/http"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ScopeController struct {
	scopeService services.ScopeService
}

func NewScopeController(scopeService services.ScopeService) *ScopeController {
	return &ScopeController{scopeService: scopeService}
}

type ScopeRequest struct {
	ID          string `json:"id" binding:"required"`
	Description string `json:"description"`
}

// ListScopes godoc
// @Summary List scopes
// @Tags Scopes
// @Produce json
// @Success 200 {array} ScopeRequest
// @Security BearerAuth
// @Router /api/v1/protected/admin/scopes [get]
func (sc *ScopeController) ListScopes(c *gin.Context) {
	scopes, err := sc.scopeService.ListScopes(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list scopes")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "failed to retrieve scopes"))
		return
	}

	resp := make([]ScopeRequest, 0, len(scopes))
	for _, s := range scopes {
		resp = append(resp, ScopeRequest{ID: s.ID, Description: s.Description})
	}
	c.JSON(http.StatusOK, resp)
}

// CreateScope godoc
// @Summary Create scope
// @Tags Scopes
// @Accept json
// @Produce json
// @Param scope body ScopeRequest true "Scope"
// @Success 201 {object} ScopeRequest
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError "Scope already exists"
// @Security BearerAuth
// @Router /api/v1/protected/admin/scopes [post]
func (sc *ScopeController) CreateScope(c *gin.Context) {
	var req ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}
	if !auth.ValidScopeToken(req.ID) {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "scope id must be a single scope token"))
		return
	}

	err := sc.scopeService.CreateScope(c.Request.Context(), &models.OAuthScope{ID: req.ID, Description: req.Description})
	if errors.Is(err, auth.ErrDuplicateID) {
		c.JSON(http.StatusConflict, models.NewAPIError(models.ErrConflict, "scope already exists"))
		return
	}
	if err != nil {
		log.WithError(err).Error("Scope creation failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "scope creation failed"))
		return
	}
	c.JSON(http.StatusCreated, req)
}
