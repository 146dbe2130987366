package routes

import (
	"errors"
	"net/http"

	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes the status a service error maps to. Store failures keep their
// message unchanged.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Error(),
			"field": validationErr.Field,
			"rule":  validationErr.Rule,
		})
	case errors.Is(err, services.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrEmailNotConfirmed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrResourceExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// currentUserID reads the user set by the auth middleware. It writes a 401 and
// returns false when there is none.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDInterface, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	userID, ok := userIDInterface.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}
