package routes

import (
	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
)

type UserRoutes struct {
	userHandler *handlers.UserHandler
	protected   []gin.HandlerFunc
}

func NewUserRoutes(userHandler *handlers.UserHandler, protected ...gin.HandlerFunc) *UserRoutes {
	return &UserRoutes{
		userHandler: userHandler,
		protected:   protected,
	}
}

func (r *UserRoutes) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(r.protected...)
	{
		users.GET("/me", r.userHandler.GetMe)
	}
}
