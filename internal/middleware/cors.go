package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS Cross-Origin Resource Sharing middleware. An empty origin list allows
// every origin.
func CORS(origins ...string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}

	config.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"X-Request-ID",
		"Accept",
		"Traceparent",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	config.MaxAge = 12 * time.Hour

	return cors.New(config)
}
