package testutils

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthenticatedRouter returns a test router whose requests carry userID the way
// the auth middleware sets it
func AuthenticatedRouter(userID uuid.UUID) (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api/v1")
	group.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("email", "test@example.com")
		c.Next()
	})
	return router, group
}
