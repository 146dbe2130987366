package routes

import (
	"net/http"
	"time"

	"finite-life/finitelife/database"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
)

func RegisterSettingsRoutes(group *gin.RouterGroup, db *database.Database, settingsService services.SettingsServiceInterface) {
	group.GET("/settings", func(c *gin.Context) { GetSettings(c, db, settingsService) })
	group.PUT("/settings", func(c *gin.Context) { UpsertSettings(c, db, settingsService) })
	group.GET("/life", func(c *gin.Context) { GetLifeSummary(c, db, settingsService) })
	group.GET("/life/grid", func(c *gin.Context) { GetLifeGrid(c, db, settingsService) })
}

func GetSettings(c *gin.Context, db *database.Database, settingsService services.SettingsServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	settings, err := settingsService.GetSettings(db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func UpsertSettings(c *gin.Context, db *database.Database, settingsService services.SettingsServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := settingsService.UpsertSettings(db, userID, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetLifeSummary answers even before onboarding, with needs_onboarding set
func GetLifeSummary(c *gin.Context, db *database.Database, settingsService services.SettingsServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summary, err := settingsService.GetLifeSummary(db, userID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func GetLifeGrid(c *gin.Context, db *database.Database, settingsService services.SettingsServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	grid, err := settingsService.GetLifeGrid(db, userID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}
