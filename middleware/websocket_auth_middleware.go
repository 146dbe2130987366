package middleware

import (
	"net/http"

	"finite-life/finitelife/database"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketAuthMiddleware only lets websocket upgrade requests through and then
// authenticates them like any other API call. Browsers pass the token as ?token=.
func WebSocketAuthMiddleware(db *database.Database, authService services.AuthServiceInterface, cookieName string) gin.HandlerFunc {
	auth := AuthMiddleware(db, authService, cookieName)
	return func(c *gin.Context) {
		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "WebSocket upgrade required"})
			return
		}
		auth(c)
	}
}
