package routes

import (
	"finite-life/finitelife/database"
	"finite-life/finitelife/middleware"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes sets up the realtime endpoint with authentication
func RegisterWebSocketRoutes(router *gin.Engine, db *database.Database, authService services.AuthServiceInterface, wsService services.WebSocketServiceInterface, cookieName string) {
	wsGroup := router.Group("/api/v1/ws")
	wsGroup.Use(middleware.WebSocketAuthMiddleware(db, authService, cookieName))
	{
		wsGroup.GET("", func(c *gin.Context) {
			wsService.HandleConnection(c)
		})
	}
}
