package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataportal/internal/responses"
	"dataportal/internal/services"
)

// Cookie configuration
const (
	RefreshTokenCookieName = "refresh_token"
	RefreshTokenMaxAge     = 30 * 24 * 3600 // 30 days in seconds
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid Format")
		return
	}

	user, pair, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to login")
		return
	}

	c.SetCookie(RefreshTokenCookieName, pair.RefreshToken, RefreshTokenMaxAge, "/", "", true, true)

	res := gin.H{
		"access_token": pair.AccessToken,
		"user":         user,
	}

	responses.Success(c, http.StatusOK, res, "User Login Successfully!")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, err := c.Cookie(RefreshTokenCookieName)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Missing refresh token")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
		responses.Fail(c, statusFor(err), err, "Could not revoke token")
		return
	}

	c.SetCookie(RefreshTokenCookieName, "", -1, "/", "", true, true)

	responses.Success(c, http.StatusOK, nil, "Logged out successfully")
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(RefreshTokenCookieName)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Missing refresh token")
		return
	}

	// Rotation: the presented token is revoked.
	pair, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		c.SetCookie(RefreshTokenCookieName, "", -1, "/", "", true, true)
		responses.Fail(c, statusFor(err), err, "Invalid or expired refresh token")
		return
	}

	c.SetCookie(RefreshTokenCookieName, pair.RefreshToken, RefreshTokenMaxAge, "/", "", true, true)

	res := gin.H{
		"access_token": pair.AccessToken,
	}

	responses.Success(c, http.StatusOK, res, "Access token refreshed successfully")
}
