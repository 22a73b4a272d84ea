package routes

import (
	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
	"dataportal/internal/middlewares"
	"dataportal/internal/models"
)

// PagesPath is where the page tree is mounted, relative to the API group.
const PagesPath = "/pages"

type PageRoutes struct {
	handler   *handlers.PageHandler
	protected []gin.HandlerFunc
}

func NewPageRoutes(handler *handlers.PageHandler, protected ...gin.HandlerFunc) *PageRoutes {
	return &PageRoutes{handler: handler, protected: protected}
}

// RegisterRoutes requires VIEW for every page. Configuration and writes
// check their own level in the handler.
func (r *PageRoutes) RegisterRoutes(router *gin.RouterGroup) {
	p := router.Group(PagesPath)
	p.Use(r.protected...)
	p.Use(middlewares.RequirePermissions(models.AccessView))
	{
		p.GET("/*path", r.handler.Get)
		p.POST("/*path", r.handler.Post)
		p.PUT("/*path", r.handler.Put)
		p.DELETE("/*path", r.handler.Delete)
	}
}
