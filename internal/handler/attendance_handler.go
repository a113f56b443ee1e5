package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/middleware"
	"github.com/kuliahku/kuliahku-api/internal/service"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
	"github.com/kuliahku/kuliahku-api/pkg/response"
)

// AttendanceHandler exposes ledger endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	logger     *zap.Logger
}

// NewAttendanceHandler constructs the attendance handler.
func NewAttendanceHandler(attendance *service.AttendanceService, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{attendance: attendance, logger: logger}
}

// Update godoc
// @Summary Add or remove one attendance mark on a subject
// @Tags attendance
// @Accept json
// @Produce json
// @Param id path string true "subject id"
// @Param payload body dto.AttendanceUpdateRequest true "attendance payload"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /subjects/{id}/attendance [patch]
func (h *AttendanceHandler) Update(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.AttendanceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	res, err := h.attendance.RecordAttendance(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// CheckIn godoc
// @Summary Record a check-in: ledger update plus history entry
// @Tags attendance
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "check-in payload"
// @Success 201 {object} response.Envelope
// @Security CookieAuth
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	record, err := h.attendance.CheckIn(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// History godoc
// @Summary List attendance history grouped by date
// @Tags attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /attendance-history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	days, err := h.attendance.History(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, days)
}

// Export godoc
// @Summary Export attendance history as CSV or PDF
// @Tags attendance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Security CookieAuth
// @Router /attendance-history/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	payload, contentType, err := h.attendance.ExportHistory(c.Request.Context(), identity.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("attendance-history-%s.%s", time.Now().Format("2006-01-02"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// Status godoc
// @Summary Report attendance status for one calendar date
// @Tags attendance
// @Produce json
// @Param date query string true "date YYYY-MM-DD"
// @Param subjectId query string false "scope to one subject"
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /attendance-status [get]
func (h *AttendanceHandler) Status(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required"))
		return
	}

	res, err := h.attendance.Status(c.Request.Context(), identity.UserID, date, c.Query("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Summary godoc
// @Summary Aggregate attendance percentage across subjects
// @Tags attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security CookieAuth
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	summary, err := h.attendance.Summary(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary)
}
