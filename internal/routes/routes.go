package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
)

// APIPath prefixes every API route.
const APIPath = "/api/v1"

type Handlers struct {
	Auth  *handlers.AuthHandler
	User  *handlers.UserHandler
	Page  *handlers.PageHandler
	Model *handlers.ModelHandler
	Query *handlers.QueryHandler
}

// RegisterRoutes mounts every route. protected runs before each
// authenticated route, typically authentication then the session binding.
func RegisterRoutes(router *gin.Engine, h Handlers, protected ...gin.HandlerFunc) {
	api := router.Group(APIPath)

	NewAuthRoutes(h.Auth).RegisterRoutes(api)
	NewUserRoutes(h.User, protected...).RegisterRoutes(api)
	NewPageRoutes(h.Page, protected...).RegisterRoutes(api)
	NewModelRoutes(h.Model, protected...).RegisterRoutes(api)
	NewQueryRoutes(h.Query, protected...).RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
