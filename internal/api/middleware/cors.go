package middleware

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// PermissiveCORS allows every origin and answers every OPTIONS request with 200 and no body.
func PermissiveCORS(methods ...string) []gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = methods
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Range", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Range", "Accept-Ranges", RequestIDHeader}
	corsConfig.OptionsResponseStatusCode = http.StatusOK

	return []gin.HandlerFunc{
		cors.New(corsConfig),
		// Preflights without an Origin header are not handled by cors
		func(c *gin.Context) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusOK)
				return
			}
			c.Next()
		},
	}
}
