package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tatamihq/academy-api/internal/service"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/response"
)

// AttendanceHandler exposes ledger endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exports    *service.ExportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

// Mark godoc
// @Summary Record or overwrite an attendance mark
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	member, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// Unmark godoc
// @Summary Remove an attendance mark
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.UnmarkAttendanceRequest true "Unmark payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/unmark [post]
func (h *AttendanceHandler) Unmark(c *gin.Context) {
	var req service.UnmarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	member, err := h.attendance.Unmark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// BulkMarkPresent godoc
// @Summary Mark every enrolled member present for a class date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkMarkPresentRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/bulk-mark [post]
func (h *AttendanceHandler) BulkMarkPresent(c *gin.Context) {
	var req service.BulkMarkPresentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.BulkMarkPresent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary List a member's attendance history, newest first
// @Tags Attendance
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /members/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	records, err := h.attendance.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ClassReport godoc
// @Summary Per-member status report for a class date
// @Tags Attendance
// @Produce json
// @Param id path string true "Series ID"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /series/{id}/report [get]
func (h *AttendanceHandler) ClassReport(c *gin.Context) {
	date, err := parseDateQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.attendance.ClassReport(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ExportCSV godoc
// @Summary Download a class report as CSV
// @Tags Attendance
// @Produce text/csv
// @Param id path string true "Series ID"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /series/{id}/report/csv [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	date, err := parseDateQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, filename, err := h.exports.ClassReportCSV(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportPDF godoc
// @Summary Download a class report as PDF
// @Tags Attendance
// @Produce application/pdf
// @Param id path string true "Series ID"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /series/{id}/report/pdf [get]
func (h *AttendanceHandler) ExportPDF(c *gin.Context) {
	date, err := parseDateQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, filename, err := h.exports.ClassReportPDF(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func parseDateQuery(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return date, nil
}
