package routes

import (
	"github.com/gin-gonic/gin"

	"dataportal/internal/handlers"
	"dataportal/internal/middlewares"
	"dataportal/internal/models"
)

type QueryRoutes struct {
	handler   *handlers.QueryHandler
	protected []gin.HandlerFunc
}

func NewQueryRoutes(handler *handlers.QueryHandler, protected ...gin.HandlerFunc) *QueryRoutes {
	return &QueryRoutes{handler: handler, protected: protected}
}

func (r *QueryRoutes) RegisterRoutes(router *gin.RouterGroup) {
	query := router.Group("/query")
	query.Use(r.protected...)
	query.Use(middlewares.RequirePermissions(models.AccessDevelop))
	{
		query.POST("/execute", r.handler.ExecuteQuery)
		query.GET("/history", r.handler.History)
	}
}
