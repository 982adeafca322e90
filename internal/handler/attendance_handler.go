package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	"github.com/campushub/events-api/internal/service"
	appErrors "github.com/campushub/events-api/pkg/errors"
	"github.com/campushub/events-api/pkg/response"
)

type attendanceService interface {
	Scan(ctx context.Context, req dto.ScanRequest, actor *models.JWTClaims) (*models.ScanResult, error)
	ManualOverride(ctx context.Context, regID string, req dto.ManualOverrideRequest, actor *models.JWTClaims) (*models.Registration, error)
	ListForEvent(ctx context.Context, eventID string, filter models.RegistrationFilter, actor *models.JWTClaims) (*dto.AttendanceListResponse, error)
	ListLogs(ctx context.Context, eventID string, actor *models.JWTClaims) ([]models.AttendanceLog, error)
	Export(ctx context.Context, eventID string, format service.ExportFormat, actor *models.JWTClaims) ([]byte, string, error)
}

type scanRecorder interface {
	RecordScan(outcome string)
}

// AttendanceHandler exposes REST endpoints for scanning and attendance views.
type AttendanceHandler struct {
	service attendanceService
	metrics scanRecorder
}

// NewAttendanceHandler constructs the handler. Metrics may be nil.
func NewAttendanceHandler(svc attendanceService, metrics scanRecorder) *AttendanceHandler {
	return &AttendanceHandler{service: svc, metrics: metrics}
}

// Scan godoc
// @Summary Process a scanned ticket
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scanned payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid scan payload"))
		return
	}
	result, err := h.service.Scan(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		h.recordScan("rejected")
		response.Error(c, err)
		return
	}
	if result.Duplicate {
		h.recordScan("duplicate")
	} else {
		h.recordScan("marked")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Override godoc
// @Summary Manually mark or unmark attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ManualOverrideRequest true "Override action"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/attendance [post]
func (h *AttendanceHandler) Override(c *gin.Context) {
	var req dto.ManualOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid override payload"))
		return
	}
	reg, err := h.service.ManualOverride(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// List godoc
// @Summary List attendance for an event
// @Tags Attendance
// @Produce json
// @Param id path string true "Event ID"
// @Param status query string false "Registration status"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.RegistrationFilter{}
	if raw := c.Query("status"); raw != "" {
		status := models.RegistrationStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	resp, err := h.service.ListForEvent(c.Request.Context(), c.Param("id"), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Logs godoc
// @Summary List the attendance audit trail
// @Tags Attendance
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance/logs [get]
func (h *AttendanceHandler) Logs(c *gin.Context) {
	entries, err := h.service.ListLogs(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Download the attendance sheet
// @Tags Attendance
// @Produce octet-stream
// @Param id path string true "Event ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /events/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	data, contentType, err := h.service.Export(c.Request.Context(), c.Param("id"), format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attendance-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *AttendanceHandler) recordScan(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordScan(outcome)
}
