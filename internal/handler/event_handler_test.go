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
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type eventServiceMock struct {
	createResp *models.Event
	createErr  error
	getResp    *models.Event
	getErr     error
	listResp   []models.Event
	lastFilter models.EventFilter
	updateResp *models.Event
	updateErr  error
}

func (m *eventServiceMock) Create(_ context.Context, _ dto.CreateEventRequest, _ *models.JWTClaims) (*models.Event, error) {
	return m.createResp, m.createErr
}

func (m *eventServiceMock) Get(_ context.Context, _ string, _ *models.JWTClaims) (*models.Event, error) {
	return m.getResp, m.getErr
}

func (m *eventServiceMock) List(_ context.Context, filter models.EventFilter, _ *models.JWTClaims) ([]models.Event, error) {
	m.lastFilter = filter
	return m.listResp, nil
}

func (m *eventServiceMock) Update(_ context.Context, _ string, _ dto.UpdateEventRequest, _ *models.JWTClaims) (*models.Event, error) {
	return m.updateResp, m.updateErr
}

type lifecycleServiceMock struct {
	publishResp *models.Event
	publishErr  error
	setResp     *models.Event
	setErr      error
	lastStatus  models.EventStatus
}

func (m *lifecycleServiceMock) Publish(_ context.Context, _ string, _ *models.JWTClaims) (*models.Event, error) {
	return m.publishResp, m.publishErr
}

func (m *lifecycleServiceMock) SetStatus(_ context.Context, _ string, status models.EventStatus, _ *models.JWTClaims) (*models.Event, error) {
	m.lastStatus = status
	return m.setResp, m.setErr
}

func TestEventHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &eventServiceMock{listResp: []models.Event{{ID: "event-1"}}}
	handler := NewEventHandler(mockSvc, &lifecycleServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events?status=published&type=normal&search=intro", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.EventStatusPublished, *mockSvc.lastFilter.Status)
	require.NotNil(t, mockSvc.lastFilter.Type)
	assert.Equal(t, models.EventTypeNormal, *mockSvc.lastFilter.Type)
	assert.Equal(t, "intro", mockSvc.lastFilter.Search)
}

func TestEventHandlerPublish(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &lifecycleServiceMock{
		publishResp: &models.Event{ID: "event-1", Status: models.EventStatusPublished},
	}
	handler := NewEventHandler(&eventServiceMock{}, lifecycle)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/event-1/publish", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.Publish(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PUBLISHED")
}

func TestEventHandlerSetStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &lifecycleServiceMock{
		setResp: &models.Event{ID: "event-1", Status: models.EventStatusClosed},
	}
	handler := NewEventHandler(&eventServiceMock{}, lifecycle)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/event-1/status",
		bytes.NewBufferString(`{"status":"CLOSED"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.SetStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EventStatusClosed, lifecycle.lastStatus)
}

func TestEventHandlerSetStatusConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &lifecycleServiceMock{setErr: appErrors.ErrInvalidTransition}
	handler := NewEventHandler(&eventServiceMock{}, lifecycle)

	w := httptest.NewRecorder()
	c, _ := organizerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/event-1/status",
		bytes.NewBufferString(`{"status":"COMPLETED"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.SetStatus(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
}
