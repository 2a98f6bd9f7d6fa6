package models

import "time"

// OAuthScope is an entry in the scope directory.
type OAuthScope struct {
	ID          string `gorm:"primaryKey"`
	Description string
	CreatedAt   time.Time
}

func (OAuthScope) TableName() string {
	return "oauth_scopes"
}
