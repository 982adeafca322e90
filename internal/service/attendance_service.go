package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
	"github.com/campushub/events-api/pkg/export"
	"github.com/campushub/events-api/pkg/ticket"
)

const defaultStatsTTL = 30 * time.Second

type attendanceRegStore interface {
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	FindByTicket(ctx context.Context, ticketID, eventID, participantID string) (*models.Registration, error)
	ListForEvent(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, error)
	MarkAttendance(ctx context.Context, id string, at time.Time) error
	UnmarkAttendance(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context, eventID string) (*models.AttendanceStats, error)
}

type attendanceEventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type attendanceLogStore interface {
	Create(ctx context.Context, entry *models.AttendanceLog) error
	ListForEvent(ctx context.Context, eventID string) ([]models.AttendanceLog, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AttendanceService marks attendance from scanned tickets and manual
// overrides, and serves the organizer's attendance views.
type AttendanceService struct {
	regs     attendanceRegStore
	events   attendanceEventStore
	logs     attendanceLogStore
	cache    statsCache
	logger   *zap.Logger
	clock    func() time.Time
	statsTTL time.Duration
}

// NewAttendanceService constructs the service. Cache may be nil.
func NewAttendanceService(regs attendanceRegStore, events attendanceEventStore, logs attendanceLogStore, cache statsCache, logger *zap.Logger, clock func() time.Time, statsTTL time.Duration) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if statsTTL <= 0 {
		statsTTL = defaultStatsTTL
	}
	return &AttendanceService{regs: regs, events: events, logs: logs, cache: cache, logger: logger, clock: clock, statsTTL: statsTTL}
}

// Scan processes a raw scanned or uploaded ticket payload. A ticket that is
// already marked is a successful duplicate, not an error, and writes no audit
// entry. Of two concurrent scans of the same ticket exactly one marks and
// logs; the other takes the duplicate path.
func (s *AttendanceService) Scan(ctx context.Context, req dto.ScanRequest, actor *models.JWTClaims) (*models.ScanResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.Method.Valid() || req.Method == models.AttendanceMethodManual {
		return nil, appErrors.Clone(appErrors.ErrValidation, "method must be QR_SCAN or FILE_UPLOAD")
	}

	payload, err := ticket.Decode(req.Payload)
	if err != nil {
		return nil, appErrors.ErrInvalidQR
	}
	if err := payload.Validate(); err != nil {
		var incomplete *ticket.IncompleteError
		if errors.As(err, &incomplete) {
			return nil, appErrors.Clone(appErrors.ErrInvalidQR,
				fmt.Sprintf("incomplete code: missing %s", strings.Join(incomplete.Missing, ", ")))
		}
		return nil, appErrors.ErrInvalidQR
	}

	event, err := s.ownedEvent(ctx, payload.EventID, actor)
	if err != nil {
		return nil, err
	}

	reg, err := s.regs.FindByTicket(ctx, payload.TicketID, event.ID, payload.ParticipantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidTicket
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve ticket")
	}
	if !reg.Status.CountsForAttendance() {
		return nil, appErrors.ErrInvalidTicket
	}

	if reg.AttendanceMarked {
		return duplicateResult(reg), nil
	}

	now := s.clock()
	if err := s.regs.MarkAttendance(ctx, reg.ID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race to a concurrent scan. Reload for the original
			// timestamp and report a duplicate.
			current, reloadErr := s.regs.GetByID(ctx, reg.ID)
			if reloadErr != nil {
				return nil, appErrors.Wrap(reloadErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
			}
			return duplicateResult(current), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.appendLog(ctx, &models.AttendanceLog{
		EventID:        event.ID,
		RegistrationID: reg.ID,
		ParticipantID:  reg.ParticipantID,
		Action:         models.AttendanceActionMarked,
		Method:         req.Method,
		PerformedBy:    actor.UserID,
	})
	s.invalidateStats(ctx, event.ID)

	reg.AttendanceMarked = true
	reg.AttendanceAt = &now
	return &models.ScanResult{Registration: reg, Duplicate: false, MarkedAt: now}, nil
}

// ManualOverride marks or unmarks attendance bypassing the scanner. Unlike a
// duplicate scan, overriding in the direction the flag already points is an
// error, and every override requires a reason.
func (s *AttendanceService) ManualOverride(ctx context.Context, regID string, req dto.ManualOverrideRequest, actor *models.JWTClaims) (*models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < 3 {
		return nil, appErrors.ErrMissingReason
	}

	reg, err := s.regs.GetByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	event, err := s.ownedEvent(ctx, reg.EventID, actor)
	if err != nil {
		return nil, err
	}
	if !reg.Status.CountsForAttendance() {
		return nil, appErrors.ErrInvalidTicket
	}

	now := s.clock()
	var action models.AttendanceAction
	switch req.Action {
	case models.ManualActionMark:
		if err := s.regs.MarkAttendance(ctx, reg.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrAlreadyMarked
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
		}
		action = models.AttendanceActionMarked
		reg.AttendanceMarked = true
		reg.AttendanceAt = &now
	case models.ManualActionUnmark:
		if err := s.regs.UnmarkAttendance(ctx, reg.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotMarked
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unmark attendance")
		}
		action = models.AttendanceActionUnmarked
		reg.AttendanceMarked = false
		reg.AttendanceAt = nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be MARK or UNMARK")
	}

	s.appendLog(ctx, &models.AttendanceLog{
		EventID:        event.ID,
		RegistrationID: reg.ID,
		ParticipantID:  reg.ParticipantID,
		Action:         action,
		Method:         models.AttendanceMethodManual,
		PerformedBy:    actor.UserID,
		Reason:         &reason,
	})
	s.invalidateStats(ctx, event.ID)
	return reg, nil
}

// ListForEvent returns the tracked registrations plus scan stats for the
// organizer's event.
func (s *AttendanceService) ListForEvent(ctx context.Context, eventID string, filter models.RegistrationFilter, actor *models.JWTClaims) (*dto.AttendanceListResponse, error) {
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsFor(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	filter.EventID = event.ID
	records, err := s.regs.ListForEvent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return &dto.AttendanceListResponse{Stats: *stats, Registrations: records}, nil
}

// ListLogs returns the event's append-only audit trail, newest first.
func (s *AttendanceService) ListLogs(ctx context.Context, eventID string, actor *models.JWTClaims) ([]models.AttendanceLog, error) {
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	entries, err := s.logs.ListForEvent(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance logs")
	}
	return entries, nil
}

// ExportFormat selects the attendance sheet rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Export renders the event's attendance sheet for download.
func (s *AttendanceService) Export(ctx context.Context, eventID string, format ExportFormat, actor *models.JWTClaims) ([]byte, string, error) {
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, "", err
	}
	records, err := s.regs.ListForEvent(ctx, models.RegistrationFilter{EventID: event.ID})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Ticket", "Status", "Attended", "Attended At"},
	}
	for _, record := range records {
		attended := "NO"
		attendedAt := ""
		if record.AttendanceMarked {
			attended = "YES"
			if record.AttendanceAt != nil {
				attendedAt = record.AttendanceAt.Format(time.RFC3339)
			}
		}
		ticketID := ""
		if record.TicketID != nil {
			ticketID = *record.TicketID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":        record.ParticipantName,
			"Email":       record.ParticipantEmail,
			"Ticket":      ticketID,
			"Status":      string(record.Status),
			"Attended":    attended,
			"Attended At": attendedAt,
		})
	}

	switch format {
	case ExportFormatCSV:
		data, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case ExportFormatPDF:
		data, err := export.NewPDFExporter().Render(dataset, fmt.Sprintf("Attendance - %s", event.Name))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *AttendanceService) ownedEvent(ctx context.Context, eventID string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OrganizerID != actor.UserID {
		return nil, appErrors.ErrNotAuthorized
	}
	return event, nil
}

func (s *AttendanceService) statsFor(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	key := statsCacheKey(eventID)
	if s.cache != nil {
		var cached models.AttendanceStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}
	stats, err := s.regs.Stats(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("failed to cache attendance stats", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey(eventID)); err != nil {
		s.logger.Warn("failed to invalidate attendance stats cache", zap.String("event_id", eventID), zap.Error(err))
	}
}

// appendLog writes one audit entry. The attendance flag change has already
// committed; a failed log write is reported but does not undo it.
func (s *AttendanceService) appendLog(ctx context.Context, entry *models.AttendanceLog) {
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to append attendance log",
			zap.String("registration_id", entry.RegistrationID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func duplicateResult(reg *models.Registration) *models.ScanResult {
	result := &models.ScanResult{Registration: reg, Duplicate: true}
	if reg.AttendanceAt != nil {
		result.MarkedAt = *reg.AttendanceAt
	}
	return result
}

func statsCacheKey(eventID string) string {
	return "attendance:stats:" + eventID
}
