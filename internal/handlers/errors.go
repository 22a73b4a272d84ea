package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dataportal/internal/chart"
	"dataportal/internal/middlewares"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
	"dataportal/internal/services"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pages.ErrPageNotFound),
		errors.Is(err, pages.ErrNoParent),
		errors.Is(err, persistence.ErrNotFound),
		errors.Is(err, persistence.ErrTableNotFound),
		errors.Is(err, persistence.ErrRelationshipNotFound),
		errors.Is(err, chart.ErrChartNotFound),
		errors.Is(err, services.ErrDatabaseNotFound),
		errors.Is(err, services.ErrNotCrudPage):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrQueryRejected),
		errors.Is(err, persistence.ErrInvalidQuery),
		errors.Is(err, persistence.ErrNoTableInQuery),
		errors.Is(err, chart.ErrInvalidChartType):
		return http.StatusBadRequest
	case errors.Is(err, chart.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, persistence.ErrDatabaseNotInstalled),
		errors.Is(err, persistence.ErrNoModel):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// currentUserID is the id stored by the Authenticate middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middlewares.UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func currentUserPtr(c *gin.Context) *uuid.UUID {
	id, ok := currentUserID(c)
	if !ok {
		return nil
	}
	return &id
}
