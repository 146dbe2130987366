package services

import (
	"errors"

	"finite-life/finitelife/database"
	"finite-life/finitelife/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserServiceInterface interface {
	GetCurrentUser(db *database.Database, userID uuid.UUID) (models.User, error)
}

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

// GetCurrentUser loads the signed in user
func (s *UserService) GetCurrentUser(db *database.Database, userID uuid.UUID) (models.User, error) {
	if userID == uuid.Nil {
		return models.User{}, ErrUnauthenticated
	}

	var user models.User
	if err := db.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, backendError(err)
	}
	return user, nil
}

var UserServiceInstance UserServiceInterface = &UserService{}
