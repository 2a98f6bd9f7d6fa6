package services

import (
	"context"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
)

// CodeService stores authorization codes between the authorize redirect and
// the code exchange.
type CodeService interface {
	CreateCode(ctx context.Context, code *models.OAuthCode) error
	GetCode(ctx context.Context, code string) (*models.OAuthCode, error)
	DeleteCode(ctx context.Context, code string) error
}

type codeService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCodeService(db *gorm.DB) CodeService {
	return &codeService{db: db, now: time.Now}
}

func (s *codeService) CreateCode(ctx context.Context, code *models.OAuthCode) error {
	code.ExpiresAt = code.ExpiresAt.UTC()
	return translateError(s.db.WithContext(ctx).Create(code).Error)
}

// GetCode returns auth.ErrNotFound for unknown and expired codes alike.
func (s *codeService) GetCode(ctx context.Context, code string) (*models.OAuthCode, error) {
	var row models.OAuthCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	if !row.ExpiresAt.After(s.now()) {
		return nil, auth.ErrNotFound
	}
	return &row, nil
}

func (s *codeService) DeleteCode(ctx context.Context, code string) error {
	return translateError(s.db.WithContext(ctx).Where("code = ?", code).Delete(&models.OAuthCode{}).Error)
}
