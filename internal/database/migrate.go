package database

import (
	"context"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the server owns.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return err
	}
	log.WithField("tables", len(models.All())).Info("Database schema migrated")
	return nil
}
