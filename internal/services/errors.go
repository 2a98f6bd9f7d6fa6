package services

import (
	"errors"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("user_already_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// translateError maps gorm errors onto the repository contract. It relies on
// the connection being opened with TranslateError enabled.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return auth.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return auth.ErrDuplicateID
	}
	return err
}
