package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig allowed cross-origin access
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS cross-origin middleware; no origins configured means any origin
func CORS(cfg CORSConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowOrigins
		config.AllowCredentials = cfg.AllowCredentials
	}
	if len(cfg.AllowMethods) > 0 {
		config.AllowMethods = cfg.AllowMethods
	}
	config.AllowHeaders = append([]string{"Origin", "Content-Type", "Authorization", RequestIDHeader}, cfg.AllowHeaders...)
	config.ExposeHeaders = append([]string{RequestIDHeader}, cfg.ExposeHeaders...)
	if cfg.MaxAge > 0 {
		config.MaxAge = cfg.MaxAge
	}
	return cors.New(config)
}
