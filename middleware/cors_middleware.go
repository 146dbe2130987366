package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured web origins to call the API with the session
// cookie. allowedOrigins is a comma separated list and may contain wildcards.
func CORSMiddleware(allowedOrigins string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(allowedOrigins)
	corsConfig.AllowWildcard = true
	corsConfig.AllowWebSockets = true
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders,
		"Accept",
		"Authorization",
		"X-Requested-With",
	)
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}

func splitOrigins(allowedOrigins string) []string {
	var origins []string
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
