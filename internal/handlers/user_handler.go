package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataportal/internal/middlewares"
	"dataportal/internal/responses"
	"dataportal/internal/services"
)

type UserHandler struct {
	authService *services.AuthService
}

func NewUserHandler(authService *services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	if sess, ok := middlewares.CurrentSession(c); ok && sess.CurrentUser() != nil {
		responses.Success(c, http.StatusOK, sess.CurrentUser(), "User retrieved successfully")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	user, err := h.authService.FindUserByID(c.Request.Context(), userID)
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to retrieve user")
		return
	}
	if user == nil {
		responses.Fail(c, http.StatusNotFound, nil, "User not found")
		return
	}

	responses.Success(c, http.StatusOK, user, "User retrieved successfully")
}
