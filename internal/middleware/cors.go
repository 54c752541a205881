package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options for the render service's
// small route surface (POST /render, POST /flush, and the GET lifecycle
// endpoints in internal/httpapi — never PUT or DELETE).
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultRenderCORSConfig returns the CORS configuration for the render
// endpoints. The shared secret internal/middleware.Secret checks travels
// as a JSON body field, not a header or cookie, so AllowHeaders only
// needs the plain JSON request headers and AllowCredentials stays false.
func DefaultRenderCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"}, // render output has no per-origin sensitivity; configure specific origins to restrict who can trigger renders
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
