package controllers

import (
	"errors"
	"net/http"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UserController manages resource owners for the password and authorization
// code grants.
type UserController struct {
	userService services.UserService
}

func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// CreateUser godoc
// @Summary Create resource owner
// @Tags Users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User"
// @Success 201 {object} UserResponse
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError "User already exists"
// @Security BearerAuth
// @Router /api/v1/protected/admin/users [post]
func (uc *UserController) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	user := &models.User{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	}
	if user.Role == "" {
		user.Role = "user"
	}
	if err := uc.userService.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(http.StatusConflict, models.NewAPIError(models.ErrConflict, "user already exists"))
			return
		}
		log.WithError(err).Error("User creation failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "user creation failed"))
		return
	}

	c.JSON(http.StatusCreated, UserResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
}
