package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dataportal/internal/responses"
	"dataportal/internal/services"
)

type QueryHandler struct {
	queryService *services.QueryService
}

func NewQueryHandler(queryService *services.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// ExecuteQuery runs native SQL on a model database.
func (h *QueryHandler) ExecuteQuery(c *gin.Context) {
	var req services.ExecuteQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: database and query are required")
		return
	}

	result, err := h.queryService.ExecuteQuery(c.Request.Context(), &req)
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to execute query")
		return
	}

	response := gin.H{
		"result":            result,
		"execution_time_ms": result.ExecutionTime,
	}

	responses.Success(c, http.StatusOK, response, "Query executed successfully")
}

// History lists past executions. ?mine=true restricts them to the caller.
func (h *QueryHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid limit")
		return
	}

	var userID *uuid.UUID
	if c.Query("mine") == "true" {
		id, ok := currentUserID(c)
		if !ok {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		userID = &id
	}

	entries, err := h.queryService.History(c.Request.Context(), c.Query("database"), userID, limit)
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to retrieve query history")
		return
	}

	responses.Success(c, http.StatusOK, entries, "Query history retrieved successfully")
}
