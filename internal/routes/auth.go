package routes

import (
	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
)

type AuthRoutes struct {
	handler *handlers.AuthHandler
}

func NewAuthRoutes(handler *handlers.AuthHandler) *AuthRoutes {
	return &AuthRoutes{handler: handler}
}

// RegisterRoutes mounts the public auth endpoints. Refresh and logout read
// the refresh token cookie.
func (r *AuthRoutes) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", r.handler.Login)
		auth.POST("/refresh", r.handler.Refresh)
		auth.POST("/logout", r.handler.Logout)
	}
}
