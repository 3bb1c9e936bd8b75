package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/influenza/backend/internal/model"
	"github.com/influenza/backend/internal/service"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth/refresh-token"
)

type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge int
}

type AuthHandler struct {
	svc       *service.AuthService
	cookieCfg CookieConfig
}

func NewAuthHandler(svc *service.AuthService, refreshTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		svc: svc,
		cookieCfg: CookieConfig{
			Name:   refreshCookieName,
			Path:   refreshCookiePath,
			Secure: secureCookies,
			MaxAge: int(refreshTTL.Seconds()),
		},
	}
}

// SignUp creates a user. The response never carries the password hash.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	user, err := h.svc.SignUp(c.Request.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.NewUserResponse(user))
}

// SignIn verifies credentials, sets the refresh cookie, and returns the
// access token alongside the minimal profile.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	user, accessToken, refreshToken, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, model.SignInResponse{
		ID:          user.ID.String(),
		Name:        user.UserName,
		Email:       user.Email,
		AccessToken: accessToken,
	})
}

// SignOut clears the refresh cookie. Idempotent: succeeds with or without a
// cookie present. Already-issued access tokens expire naturally.
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out successfully!"})
}

// Refresh mints a new access token from the refresh-token cookie. The
// refresh token is not rotated.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cookieCfg.Name)
	accessToken, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RefreshResponse{AccessToken: accessToken})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieCfg.Name, token, h.cookieCfg.MaxAge, h.cookieCfg.Path, "", h.cookieCfg.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieCfg.Name, "", -1, h.cookieCfg.Path, "", h.cookieCfg.Secure, true)
}

// writeAuthError is the single place service errors become HTTP responses;
// raw storage or crypto errors never reach the client.
func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": "User already exists!"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials!"})
	case errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusForbidden, gin.H{"message": "Refresh token expired!"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found!"})
	case errors.Is(err, service.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid or expired token"})
	case errors.Is(err, service.ErrEmailSend):
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to send reset email"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
