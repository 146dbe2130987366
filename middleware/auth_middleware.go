package middleware

import (
	"errors"
	"net/http"

	"finite-life/finitelife/database"
	"finite-life/finitelife/services"
	"finite-life/finitelife/utils/token"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware accepts a bearer token or the session cookie and rejects requests
// whose session was revoked or has expired
func AuthMiddleware(db *database.Database, authService services.AuthServiceInterface, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := token.ExtractToken(c, cookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := authService.ValidateSession(db, tokenString)
		if err != nil {
			if errors.Is(err, services.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("claims", claims)

		c.Next()
	}
}
