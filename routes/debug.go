package routes

import (
	"net/http"
	"time"

	"finite-life/finitelife/database"
	"finite-life/finitelife/models"

	"github.com/gin-gonic/gin"
)

// SetupDebugRoutes sets up routes for debugging. Only mount them in development.
func SetupDebugRoutes(router *gin.Engine, db *database.Database) {
	debugGroup := router.Group("/api/v1/debug")
	{
		debugGroup.GET("/event-queue", func(c *gin.Context) {
			var events []models.Event
			if err := db.DB.Where("dispatched = ?", false).Order("timestamp ASC").Find(&events).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"pending_events": len(events),
				"events":         events,
				"time":           time.Now(),
			})
		})
	}
}

// RegisterHealthRoutes reports whether the store answers
func RegisterHealthRoutes(router *gin.Engine, db *database.Database) {
	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
