package services

import (
	"context"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenService persists access and refresh tokens. All times are stored in UTC
// so that expiry comparisons behave the same on every driver.
type TokenService interface {
	auth.TokenRepository
}

type tokenService struct {
	db *gorm.DB
}

func NewTokenService(db *gorm.DB) TokenService {
	return &tokenService{db: db}
}

func (s *tokenService) CreateAccessToken(ctx context.Context, t *auth.AccessToken) error {
	row := models.OAuthAccessToken{
		ID:        t.ID,
		ClientID:  t.ClientID,
		UserID:    t.UserID,
		ExpiresAt: t.ExpiresAt.UTC(),
		CreatedAt: t.CreatedAt.UTC(),
	}
	scopes := make([]models.OAuthAccessTokenScope, 0, len(t.Scopes))
	for i, scope := range t.Scopes {
		scopes = append(scopes, models.OAuthAccessTokenScope{
			AccessTokenID: t.ID,
			ScopeID:       scope,
			Position:      i,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return translateError(err)
		}
		if len(scopes) == 0 {
			return nil
		}
		// A conflict here is a repeated scope, not an id collision.
		if err := tx.Create(&scopes).Error; err != nil {
			return fmt.Errorf("store access token scopes: %v", err)
		}
		return nil
	})
	return err
}

func (s *tokenService) FindAccessToken(ctx context.Context, id string) (*auth.AccessToken, error) {
	var row models.OAuthAccessToken
	err := s.db.WithContext(ctx).
		Preload("Scopes", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, translateError(err)
	}

	scopes := make([]string, 0, len(row.Scopes))
	for _, s := range row.Scopes {
		scopes = append(scopes, s.ScopeID)
	}
	return &auth.AccessToken{
		ID:        row.ID,
		ClientID:  row.ClientID,
		UserID:    row.UserID,
		Scopes:    scopes,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (s *tokenService) DeleteAccessToken(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("access_token_id = ?", id).Delete(&models.OAuthAccessTokenScope{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.OAuthAccessToken{}).Error
	})
	return translateError(err)
}

func (s *tokenService) CreateRefreshToken(ctx context.Context, t *auth.RefreshToken) error {
	row := models.OAuthRefreshToken{
		ID:            t.ID,
		AccessTokenID: t.AccessTokenID,
		ExpiresAt:     t.ExpiresAt.UTC(),
		CreatedAt:     t.CreatedAt.UTC(),
	}
	return translateError(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *tokenService) FindRefreshToken(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var row models.OAuthRefreshToken
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return &auth.RefreshToken{
		ID:            row.ID,
		AccessTokenID: row.AccessTokenID,
		ExpiresAt:     row.ExpiresAt.UTC(),
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func (s *tokenService) DeleteRefreshToken(ctx context.Context, id string) error {
	return translateError(s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OAuthRefreshToken{}).Error)
}

// ShortenRefreshTokenExpiry only ever moves the expiry earlier, so revoking a
// token twice never extends its grace window.
func (s *tokenService) ShortenRefreshTokenExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.OAuthRefreshToken{}).
		Where("id = ? AND expires_at > ?", id, expiresAt.UTC()).
		Update("expires_at", expiresAt.UTC()).Error
	return translateError(err)
}

func (s *tokenService) RefreshTokenExistsAfter(ctx context.Context, id string, at time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.OAuthRefreshToken{}).
		Where("id = ? AND expires_at > ?", id, at.UTC()).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// DeleteExpired removes access tokens, refresh tokens and authorization codes
// that expired at or before the given time.
func (s *tokenService) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC()
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.OAuthAccessToken{}).Select("id").Where("expires_at <= ?", before)
		if err := tx.Where("access_token_id IN (?)", expired).Delete(&models.OAuthAccessTokenScope{}).Error; err != nil {
			return err
		}

		for _, model := range []any{&models.OAuthAccessToken{}, &models.OAuthRefreshToken{}, &models.OAuthCode{}} {
			res := tx.Where("expires_at <= ?", before).Delete(model)
			if res.Error != nil {
				return res.Error
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, translateError(err)
	}
	return deleted, nil
}
