package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/middleware"
	"github.com/kuliahku/kuliahku-api/internal/service"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
	"github.com/kuliahku/kuliahku-api/pkg/response"
)

// UserHandler exposes profile endpoints.
type UserHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	logger *zap.Logger
}

// NewUserHandler constructs the user handler.
func NewUserHandler(users *service.UserService, auth *service.AuthService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, auth: auth, logger: logger}
}

// UpdateProfile godoc
// @Summary Update the authenticated user's profile
// @Tags users
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "profile payload"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /user/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user)
}

// ChangePassword godoc
// @Summary Change the authenticated user's password
// @Tags users
// @Accept json
// @Produce json
// @Param payload body dto.ChangePasswordRequest true "password payload"
// @Success 204
// @Security CookieAuth
// @Router /user/change-password [post]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), identity.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
