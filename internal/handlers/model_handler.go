package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataportal/internal/responses"
	"dataportal/internal/services"
)

type ModelHandler struct {
	modelService *services.ModelService
}

func NewModelHandler(modelService *services.ModelService) *ModelHandler {
	return &ModelHandler{modelService: modelService}
}

// Sync handles POST /api/v1/model/sync
func (h *ModelHandler) Sync(c *gin.Context) {
	if err := h.modelService.Sync(c.Request.Context()); err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to synchronize model")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Model synchronized successfully")
}

func (h *ModelHandler) DDLCreate(c *gin.Context) {
	stmts, err := h.modelService.DDLCreate()
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to generate DDL")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"statements": stmts}, "DDL generated successfully")
}

func (h *ModelHandler) DDLUpdate(c *gin.Context) {
	stmts, err := h.modelService.DDLUpdate(c.Request.Context())
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to generate DDL")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"statements": stmts}, "DDL generated successfully")
}

// VisualizeSchema handles GET /api/v1/model/schema?database=&schema=
func (h *ModelHandler) VisualizeSchema(c *gin.Context) {
	databaseName := c.Query("database")
	if databaseName == "" {
		responses.Fail(c, http.StatusBadRequest, nil, "Database is required")
		return
	}
	schema := c.Query("schema")

	mermaidDiagram, err := h.modelService.VisualizeSchema(databaseName, schema)
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to visualize schema")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"mermaid":  mermaidDiagram,
		"database": databaseName,
		"schema":   schema,
	}, "Schema visualization generated successfully")
}

func (h *ModelHandler) Connections(c *gin.Context) {
	responses.Success(c, http.StatusOK, h.modelService.Connections(), "Connections retrieved successfully")
}
