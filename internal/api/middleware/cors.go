package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows browser clients from allowedOrigin. An empty origin allows any,
// without credentials.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if allowedOrigin == "" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{allowedOrigin}
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "Cache-Control", "X-Requested-With", HeaderRequestID}
	corsConfig.ExposeHeaders = []string{HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	return cors.New(corsConfig)
}
