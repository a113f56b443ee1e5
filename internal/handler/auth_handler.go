package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/middleware"
	"github.com/kuliahku/kuliahku-api/internal/service"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
	"github.com/kuliahku/kuliahku-api/pkg/response"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	users   *service.UserService
	cookies config.CookieConfig
	logger  *zap.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth *service.AuthService, users *service.UserService, cookies config.CookieConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, users: users, cookies: cookies, logger: logger}
}

// Register godoc
// @Summary Register a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "registration payload"
// @Success 201 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "login payload"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetSessionCookie(c, res.SessionToken, h.cookies, int(h.auth.SessionExpiry().Seconds()))
	if res.RememberToken != "" {
		middleware.SetRememberCookie(c, res.RememberToken, h.cookies, int(h.auth.RememberExpiry().Seconds()))
	}

	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Invalidate the remember token and clear auth cookies
// @Tags auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionToken, _ := c.Cookie(middleware.CookieSession)
	rememberToken, _ := c.Cookie(middleware.CookieRemember)

	h.auth.Logout(c.Request.Context(), sessionToken, rememberToken)
	middleware.ClearAuthCookies(c, h.cookies)

	response.JSON(c, http.StatusOK, gin.H{"message": "logged out"})
}

// Me godoc
// @Summary Return the authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	user, err := h.users.Get(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user)
}
