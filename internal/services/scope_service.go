package services

import (
	"context"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
)

type ScopeService interface {
	auth.ScopeRepository
	CreateScope(ctx context.Context, scope *models.OAuthScope) error
}

type scopeService struct {
	db *gorm.DB
}

func NewScopeService(db *gorm.DB) ScopeService {
	return &scopeService{db: db}
}

func (s *scopeService) CreateScope(ctx context.Context, scope *models.OAuthScope) error {
	return translateError(s.db.WithContext(ctx).Create(scope).Error)
}

func (s *scopeService) FindScope(ctx context.Context, id string) (*auth.Scope, error) {
	var row models.OAuthScope
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return &auth.Scope{ID: row.ID, Description: row.Description}, nil
}

func (s *scopeService) ListScopes(ctx context.Context) ([]auth.Scope, error) {
	var rows []models.OAuthScope
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	scopes := make([]auth.Scope, 0, len(rows))
	for _, row := range rows {
		scopes = append(scopes, auth.Scope{ID: row.ID, Description: row.Description})
	}
	return scopes, nil
}
