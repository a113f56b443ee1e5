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

// SubjectHandler exposes subject CRUD endpoints.
type SubjectHandler struct {
	subjects *service.SubjectService
	logger   *zap.Logger
}

// NewSubjectHandler constructs the subject handler.
func NewSubjectHandler(subjects *service.SubjectService, logger *zap.Logger) *SubjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectHandler{subjects: subjects, logger: logger}
}

// Create godoc
// @Summary Create a subject
// @Tags subjects
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubjectRequest true "subject payload"
// @Success 201 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	subject, err := h.subjects.Create(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, subject)
}

// List godoc
// @Summary List the authenticated user's subjects
// @Tags subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	subjects, err := h.subjects.List(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, subjects, map[string]interface{}{"count": len(subjects)})
}

// Get godoc
// @Summary Get one subject by internal or external id
// @Tags subjects
// @Produce json
// @Param id path string true "subject id"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	subject, err := h.subjects.Get(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, subject)
}

// Update godoc
// @Summary Update a subject's schedule fields
// @Tags subjects
// @Accept json
// @Produce json
// @Param id path string true "subject id"
// @Param payload body dto.UpdateSubjectRequest true "subject payload"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	subject, err := h.subjects.Update(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, subject)
}

// AppendReschedule godoc
// @Summary Append a reschedule entry to a subject
// @Tags subjects
// @Accept json
// @Produce json
// @Param id path string true "subject id"
// @Param payload body dto.RescheduleRequest true "reschedule payload"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects/{id}/reschedules [post]
func (h *SubjectHandler) AppendReschedule(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	if err := h.subjects.AppendReschedule(c.Request.Context(), identity.UserID, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "reschedule recorded"})
}

// Delete godoc
// @Summary Delete one subject
// @Tags subjects
// @Produce json
// @Param id path string true "subject id"
// @Success 204
// @Security CookieAuth
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	if err := h.subjects.Delete(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// DeleteAll godoc
// @Summary Delete all of the user's subjects
// @Tags subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects [delete]
func (h *SubjectHandler) DeleteAll(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	deleted, err := h.subjects.DeleteAll(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}
