package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/model"
	"storefront/internal/utils"
	pkgutils "storefront/pkg/utils"
)

const (
	// AuthorizationHeader header carrying the bearer token
	AuthorizationHeader = "Authorization"
	// BearerPrefix expected token prefix
	BearerPrefix = "Bearer "
	// CallerKey context key of the authenticated model.Caller
	CallerKey = "caller"
)

// TokenValidator verifies a raw token
type TokenValidator func(token string) (*utils.JWTClaims, error)

// Auth authenticates the request and stores the caller in the context
func Auth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthorizationHeader)
		if header == "" {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := validate(token)
		if err != nil {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(CallerKey, model.Caller{
			UserID: claims.UserID,
			Tag:    claims.Tag,
			Admin:  claims.IsAdmin(),
		})
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin capability; use after Auth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller, ok := GetCaller(c); !ok || !caller.Admin {
			pkgutils.ErrorFrom(c, pkgutils.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCaller returns the caller set by Auth
func GetCaller(c *gin.Context) (model.Caller, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return model.Caller{}, false
	}
	caller, ok := v.(model.Caller)
	return caller, ok
}
