package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/pkg/limiter"
	"storefront/pkg/log"
)

// RateLimit throttles each caller separately; anonymous requests are keyed by IP
func RateLimit(l *limiter.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if caller, ok := GetCaller(c); ok {
			key = "user:" + caller.UserID
		}

		if !l.Allow(key) {
			log.WithFields(log.Fields{
				"key":  key,
				"path": c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
