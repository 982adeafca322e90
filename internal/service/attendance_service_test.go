package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
	"github.com/campushub/events-api/pkg/ticket"
)

type stubAttendanceRegStore struct {
	byID      map[string]*models.Registration
	byTicket  map[string]*models.Registration
	records   []models.RegistrationRecord
	stats     *models.AttendanceStats
	markErr   error
	unmarkErr error
	marked    []string
	unmarked  []string
}

func newStubAttendanceRegStore() *stubAttendanceRegStore {
	return &stubAttendanceRegStore{
		byID:     map[string]*models.Registration{},
		byTicket: map[string]*models.Registration{},
		stats:    &models.AttendanceStats{},
	}
}

func (s *stubAttendanceRegStore) GetByID(_ context.Context, id string) (*models.Registration, error) {
	reg, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reg
	return &copied, nil
}

func (s *stubAttendanceRegStore) FindByTicket(_ context.Context, ticketID, eventID, participantID string) (*models.Registration, error) {
	reg, ok := s.byTicket[ticketID+"/"+eventID+"/"+participantID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reg
	return &copied, nil
}

func (s *stubAttendanceRegStore) ListForEvent(_ context.Context, _ models.RegistrationFilter) ([]models.RegistrationRecord, error) {
	return s.records, nil
}

func (s *stubAttendanceRegStore) MarkAttendance(_ context.Context, id string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	if reg, ok := s.byID[id]; ok {
		reg.AttendanceMarked = true
		reg.AttendanceAt = &at
	}
	return nil
}

func (s *stubAttendanceRegStore) UnmarkAttendance(_ context.Context, id string, _ time.Time) error {
	if s.unmarkErr != nil {
		return s.unmarkErr
	}
	s.unmarked = append(s.unmarked, id)
	if reg, ok := s.byID[id]; ok {
		reg.AttendanceMarked = false
		reg.AttendanceAt = nil
	}
	return nil
}

func (s *stubAttendanceRegStore) Stats(_ context.Context, _ string) (*models.AttendanceStats, error) {
	return s.stats, nil
}

type stubLogStore struct {
	entries []*models.AttendanceLog
}

func (s *stubLogStore) Create(_ context.Context, entry *models.AttendanceLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogStore) ListForEvent(_ context.Context, eventID string) ([]models.AttendanceLog, error) {
	var out []models.AttendanceLog
	for _, entry := range s.entries {
		if entry.EventID == eventID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

type memoryStatsCache struct {
	values  map[string]models.AttendanceStats
	deleted []string
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{values: map[string]models.AttendanceStats{}}
}

func (c *memoryStatsCache) Get(_ context.Context, key string, dest interface{}) error {
	stats, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.AttendanceStats) = stats
	return nil
}

func (c *memoryStatsCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = *value.(*models.AttendanceStats)
	return nil
}

func (c *memoryStatsCache) Delete(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.values, key)
	return nil
}

func scanPayload(t *testing.T, ticketID, eventID, participantID string) string {
	t.Helper()
	raw, err := ticket.Encode(ticket.Payload{
		TicketID:        ticketID,
		EventID:         eventID,
		ParticipantID:   participantID,
		EventName:       "Intro Workshop",
		ParticipantName: "Ada",
	})
	require.NoError(t, err)
	return raw
}

func newAttendanceFixture(event *models.Event) (*AttendanceService, *stubAttendanceRegStore, *stubLogStore, *memoryStatsCache) {
	regs := newStubAttendanceRegStore()
	logs := &stubLogStore{}
	cache := newMemoryStatsCache()
	events := newStubRegEventStore(event)
	svc := NewAttendanceService(regs, events, logs, cache, nil,
		fixedClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)), time.Minute)
	return svc, regs, logs, cache
}

func TestScanMarksAndWritesOneLogEntry(t *testing.T) {
	event := publishedEvent()
	event.Status = models.EventStatusOngoing
	svc, regs, logs, cache := newAttendanceFixture(event)

	ticketID := "TKT-1"
	reg := &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered, TicketID: &ticketID,
	}
	regs.byID[reg.ID] = reg
	regs.byTicket["TKT-1/event-1/p-1"] = reg
	cache.values[statsCacheKey(event.ID)] = models.AttendanceStats{Total: 5}

	result, err := svc.Scan(context.Background(),
		dto.ScanRequest{Payload: scanPayload(t, "TKT-1", "event-1", "p-1"), Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.True(t, result.Registration.AttendanceMarked)
	require.Len(t, logs.entries, 1)
	require.Equal(t, models.AttendanceActionMarked, logs.entries[0].Action)
	require.Equal(t, models.AttendanceMethodQRScan, logs.entries[0].Method)
	require.Equal(t, "org-1", logs.entries[0].PerformedBy)
	require.Contains(t, cache.deleted, statsCacheKey(event.ID))
}

func TestScanDuplicateReturnsOriginalTimestampWithoutLogging(t *testing.T) {
	event := publishedEvent()
	svc, regs, logs, _ := newAttendanceFixture(event)

	firstMark := time.Date(2026, 9, 2, 9, 30, 0, 0, time.UTC)
	ticketID := "TKT-1"
	reg := &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered, TicketID: &ticketID,
		AttendanceMarked: true, AttendanceAt: &firstMark,
	}
	regs.byID[reg.ID] = reg
	regs.byTicket["TKT-1/event-1/p-1"] = reg

	result, err := svc.Scan(context.Background(),
		dto.ScanRequest{Payload: scanPayload(t, "TKT-1", "event-1", "p-1"), Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	require.NoError(t, err)
	require.True(t, result.Duplicate)
	require.Equal(t, firstMark, result.MarkedAt)
	require.Empty(t, logs.entries)
	require.Empty(t, regs.marked)
}

func TestScanLosingRaceTakesDuplicatePath(t *testing.T) {
	event := publishedEvent()
	svc, regs, logs, _ := newAttendanceFixture(event)

	firstMark := time.Date(2026, 9, 2, 9, 59, 0, 0, time.UTC)
	ticketID := "TKT-1"
	// The lookup sees the flag off, but the conditional update loses to a
	// concurrent scan.
	regs.byTicket["TKT-1/event-1/p-1"] = &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered, TicketID: &ticketID,
	}
	regs.byID["reg-1"] = &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered, TicketID: &ticketID,
		AttendanceMarked: true, AttendanceAt: &firstMark,
	}
	regs.markErr = sql.ErrNoRows

	result, err := svc.Scan(context.Background(),
		dto.ScanRequest{Payload: scanPayload(t, "TKT-1", "event-1", "p-1"), Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	require.NoError(t, err)
	require.True(t, result.Duplicate)
	require.Equal(t, firstMark, result.MarkedAt)
	require.Empty(t, logs.entries)
}

func TestScanRejectsMalformedAndIncompletePayloads(t *testing.T) {
	event := publishedEvent()
	svc, _, _, _ := newAttendanceFixture(event)

	_, err := svc.Scan(context.Background(),
		dto.ScanRequest{Payload: "not json", Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	require.ErrorIs(t, err, appErrors.ErrInvalidQR)

	_, err = svc.Scan(context.Background(),
		dto.ScanRequest{Payload: `{"ticketId":"TKT-1"}`, Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidQR.Code, appErr.Code)
	require.Contains(t, appErr.Message, "eventId")
	require.Contains(t, appErr.Message, "participantId")
}

func TestScanRejectsForeignOrganizerAndUnknownTicket(t *testing.T) {
	event := publishedEvent()
	svc, _, _, _ := newAttendanceFixture(event)

	payload := scanPayload(t, "TKT-1", "event-1", "p-1")
	_, err := svc.Scan(context.Background(),
		dto.ScanRequest{Payload: payload, Method: models.AttendanceMethodQRScan},
		organizerClaims("org-2"))
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.Scan(context.Background(),
		dto.ScanRequest{Payload: payload, Method: models.AttendanceMethodQRScan},
		organizerClaims("org-1"))
	require.ErrorIs(t, err, appErrors.ErrInvalidTicket)
}

func TestManualOverrideMarkAndUnmark(t *testing.T) {
	event := publishedEvent()
	svc, regs, logs, _ := newAttendanceFixture(event)

	regs.byID["reg-1"] = &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered,
	}

	updated, err := svc.ManualOverride(context.Background(), "reg-1",
		dto.ManualOverrideRequest{Action: models.ManualActionMark, Reason: "badge reader down"},
		organizerClaims("org-1"))
	require.NoError(t, err)
	require.True(t, updated.AttendanceMarked)

	updated, err = svc.ManualOverride(context.Background(), "reg-1",
		dto.ManualOverrideRequest{Action: models.ManualActionUnmark, Reason: "marked in error"},
		organizerClaims("org-1"))
	require.NoError(t, err)
	require.False(t, updated.AttendanceMarked)

	require.Len(t, logs.entries, 2)
	require.Equal(t, models.AttendanceActionMarked, logs.entries[0].Action)
	require.Equal(t, models.AttendanceActionUnmarked, logs.entries[1].Action)
	for _, entry := range logs.entries {
		require.Equal(t, models.AttendanceMethodManual, entry.Method)
		require.NotNil(t, entry.Reason)
	}
}

func TestManualOverrideRequiresReason(t *testing.T) {
	event := publishedEvent()
	svc, regs, _, _ := newAttendanceFixture(event)
	regs.byID["reg-1"] = &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered,
	}

	_, err := svc.ManualOverride(context.Background(), "reg-1",
		dto.ManualOverrideRequest{Action: models.ManualActionMark, Reason: "ok"},
		organizerClaims("org-1"))
	require.ErrorIs(t, err, appErrors.ErrMissingReason)
}

func TestManualOverrideDirectionGuards(t *testing.T) {
	event := publishedEvent()
	svc, regs, _, _ := newAttendanceFixture(event)
	regs.byID["reg-1"] = &models.Registration{
		ID: "reg-1", EventID: event.ID, ParticipantID: "p-1",
		Status: models.RegistrationStatusRegistered,
	}

	regs.markErr = sql.ErrNoRows
	_, err := svc.ManualOverride(context.Background(), "reg-1",
		dto.ManualOverrideRequest{Action: models.ManualActionMark, Reason: "badge reader down"},
		organizerClaims("org-1"))
	require.ErrorIs(t, err, appErrors.ErrAlreadyMarked)

	regs.unmarkErr = sql.ErrNoRows
	_, err = svc.ManualOverride(context.Background(), "reg-1",
		dto.ManualOverrideRequest{Action: models.ManualActionUnmark, Reason: "marked in error"},
		organizerClaims("org-1"))
	require.ErrorIs(t, err, appErrors.ErrNotMarked)
}

func TestListForEventUsesCachedStats(t *testing.T) {
	event := publishedEvent()
	svc, regs, _, cache := newAttendanceFixture(event)

	regs.stats = &models.AttendanceStats{Total: 4, Scanned: 1, NotScanned: 3, ScanRate: 25}
	resp, err := svc.ListForEvent(context.Background(), event.ID, models.RegistrationFilter{}, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, 4, resp.Stats.Total)

	// A second read hits the cache, not the store.
	regs.stats = &models.AttendanceStats{Total: 99}
	resp, err = svc.ListForEvent(context.Background(), event.ID, models.RegistrationFilter{}, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, 4, resp.Stats.Total)
	require.Contains(t, cache.values, statsCacheKey(event.ID))
}

func TestExportRendersCSV(t *testing.T) {
	event := publishedEvent()
	svc, regs, _, _ := newAttendanceFixture(event)

	marked := time.Date(2026, 9, 2, 9, 45, 0, 0, time.UTC)
	ticketID := "TKT-1"
	regs.records = []models.RegistrationRecord{
		{
			Registration: models.Registration{
				ID: "reg-1", Status: models.RegistrationStatusRegistered,
				TicketID: &ticketID, AttendanceMarked: true, AttendanceAt: &marked,
			},
			ParticipantName:  "Ada",
			ParticipantEmail: "ada@example.com",
		},
	}

	data, contentType, err := svc.Export(context.Background(), event.ID, ExportFormatCSV, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)
	require.Contains(t, string(data), "ada@example.com")
	require.Contains(t, string(data), "YES")
}
