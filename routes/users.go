package routes

import (
	"net/http"

	"finite-life/finitelife/database"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
)

func RegisterUserRoutes(group *gin.RouterGroup, db *database.Database, userService services.UserServiceInterface) {
	group.GET("/user", func(c *gin.Context) { GetCurrentUser(c, db, userService) })
}

func GetCurrentUser(c *gin.Context, db *database.Database, userService services.UserServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := userService.GetCurrentUser(db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
