package services

import (
	"context"
	"errors"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"gorm.io/gorm"
)

type UserService interface {
	CreateUser(ctx context.Context, user *models.User, password string) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
}

type userService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

func (s *userService) CreateUser(ctx context.Context, user *models.User, password string) error {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", user.Email).First(&existing).Error; err == nil {
		return ErrUserExists
	}

	hash, err := auth.HashSecret(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// VerifyCredentials returns the user when the password matches, otherwise
// ErrInvalidCredentials. Unknown emails and wrong passwords look the same.
func (s *userService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifySecret(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
