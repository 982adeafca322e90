package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/middleware"
	"github.com/campushub/events-api/internal/models"
	"github.com/campushub/events-api/internal/service"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type attendanceServiceMock struct {
	scanResp     *models.ScanResult
	scanErr      error
	scanCalled   bool
	lastScan     dto.ScanRequest
	overrideResp *models.Registration
	overrideErr  error
	listResp     *dto.AttendanceListResponse
	listErr      error
	logsResp     []models.AttendanceLog
	exportData   []byte
	exportType   string
	exportErr    error
}

func (m *attendanceServiceMock) Scan(_ context.Context, req dto.ScanRequest, _ *models.JWTClaims) (*models.ScanResult, error) {
	m.scanCalled = true
	m.lastScan = req
	return m.scanResp, m.scanErr
}

func (m *attendanceServiceMock) ManualOverride(_ context.Context, _ string, _ dto.ManualOverrideRequest, _ *models.JWTClaims) (*models.Registration, error) {
	return m.overrideResp, m.overrideErr
}

func (m *attendanceServiceMock) ListForEvent(_ context.Context, _ string, _ models.RegistrationFilter, _ *models.JWTClaims) (*dto.AttendanceListResponse, error) {
	return m.listResp, m.listErr
}

func (m *attendanceServiceMock) ListLogs(_ context.Context, _ string, _ *models.JWTClaims) ([]models.AttendanceLog, error) {
	return m.logsResp, nil
}

func (m *attendanceServiceMock) Export(_ context.Context, _ string, _ service.ExportFormat, _ *models.JWTClaims) ([]byte, string, error) {
	return m.exportData, m.exportType, m.exportErr
}

type scanRecorderMock struct {
	outcomes []string
}

func (m *scanRecorderMock) RecordScan(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

func organizerContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestAttendanceHandlerScan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{
		scanResp: &models.ScanResult{Registration: &models.Registration{ID: "reg-1"}},
	}
	recorder := &scanRecorderMock{}
	handler := NewAttendanceHandler(mockSvc, recorder)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	body := `{"payload":"{\"ticketId\":\"TKT-1\"}","method":"QR_SCAN"}`
	req, _ := http.NewRequest(http.MethodPost, "/attendance/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Scan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.scanCalled)
	assert.Equal(t, models.AttendanceMethodQRScan, mockSvc.lastScan.Method)
	assert.Equal(t, []string{"marked"}, recorder.outcomes)
}

func TestAttendanceHandlerScanDuplicateOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{
		scanResp: &models.ScanResult{Registration: &models.Registration{ID: "reg-1"}, Duplicate: true},
	}
	recorder := &scanRecorderMock{}
	handler := NewAttendanceHandler(mockSvc, recorder)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	body := `{"payload":"{}","method":"FILE_UPLOAD"}`
	req, _ := http.NewRequest(http.MethodPost, "/attendance/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Scan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"duplicate"}, recorder.outcomes)
}

func TestAttendanceHandlerScanError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{scanErr: appErrors.ErrInvalidQR}
	recorder := &scanRecorderMock{}
	handler := NewAttendanceHandler(mockSvc, recorder)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	body := `{"payload":"garbage","method":"QR_SCAN"}`
	req, _ := http.NewRequest(http.MethodPost, "/attendance/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Scan(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"rejected"}, recorder.outcomes)
}

func TestAttendanceHandlerScanInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(&attendanceServiceMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/scan", bytes.NewBufferString(`{"payload":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Scan(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{exportData: []byte("Name,Email\n"), exportType: "text/csv"}
	handler := NewAttendanceHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events/event-1/attendance/export?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance-event-1.csv")
}
