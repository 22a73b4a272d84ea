package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dataportal/internal/models"
	"dataportal/internal/utils"
)

const (
	UserIDKey      = "userId"
	AccessLevelKey = "accessLevel"
)

// TokenAuthenticator resolves the credentials of the Authorization header.
type TokenAuthenticator interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*utils.Claims, error)
	FindUserByToken(ctx context.Context, token string) (*models.User, error)
}

// Authenticate accepts "Bearer <access token>" or "Token <api token>" and
// stores the user id and access level in the gin context.
func Authenticate(auth TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing Authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid Authorization format"})
			return
		}

		switch parts[0] {
		case "Bearer":
			claims, err := auth.VerifyAccessToken(c.Request.Context(), parts[1])
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid user ID format"})
				return
			}
			c.Set(UserIDKey, userID)
			c.Set(AccessLevelKey, claims.Level())
		case "Token":
			user, err := auth.FindUserByToken(c.Request.Context(), parts[1])
			if err != nil || user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
				return
			}
			c.Set(UserIDKey, user.ID)
			c.Set(AccessLevelKey, user.Level())
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid Authorization format"})
			return
		}

		c.Next()
	}
}
