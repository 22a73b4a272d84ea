package routes

import (
	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
	"dataportal/internal/middlewares"
	"dataportal/internal/models"
)

type ModelRoutes struct {
	handler   *handlers.ModelHandler
	protected []gin.HandlerFunc
}

func NewModelRoutes(handler *handlers.ModelHandler, protected ...gin.HandlerFunc) *ModelRoutes {
	return &ModelRoutes{handler: handler, protected: protected}
}

func (r *ModelRoutes) RegisterRoutes(router *gin.RouterGroup) {
	model := router.Group("/model")
	model.Use(r.protected...)
	{
		model.GET("/schema", middlewares.RequirePermissions(models.AccessView), r.handler.VisualizeSchema)
		model.GET("/connections", middlewares.RequirePermissions(models.AccessDevelop), r.handler.Connections)
		model.GET("/ddl/create", middlewares.RequirePermissions(models.AccessDevelop), r.handler.DDLCreate)
		model.GET("/ddl/update", middlewares.RequirePermissions(models.AccessDevelop), r.handler.DDLUpdate)
		model.POST("/sync", middlewares.RequirePermissions(models.AccessAdmin), r.handler.Sync)
	}
}
