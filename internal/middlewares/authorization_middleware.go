package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataportal/internal/models"
)

// RequirePermissions rejects users whose access level is below required.
// It must run after Authenticate.
func RequirePermissions(required models.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allowed(c, required) {
			if _, exists := c.Get(AccessLevelKey); !exists {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Access denied. " + required.String() + " permission required.",
			})
			return
		}
		c.Next()
	}
}

// Allowed reports whether the authenticated user holds required.
func Allowed(c *gin.Context, required models.AccessLevel) bool {
	v, exists := c.Get(AccessLevelKey)
	if !exists {
		return false
	}
	level, ok := v.(models.AccessLevel)
	return ok && level.Allows(required)
}
