package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// Recovery turns a panic into a 500 response and logs the stack
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(log.Fields{
			"error":      recovered,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": c.GetString(RequestIDKey),
			"stack":      string(debug.Stack()),
		}).Error("Panic recovered")

		utils.Error(c, utils.CodeInternalError, "internal server error")
		c.Abort()
	})
}
