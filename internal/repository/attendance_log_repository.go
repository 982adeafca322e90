package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/events-api/internal/models"
)

// AttendanceLogRepository persists the append-only attendance audit trail.
// The table is insert-only: no update or delete path exists by design of the
// schema, and none is exposed here.
type AttendanceLogRepository struct {
	db *sqlx.DB
}

// NewAttendanceLogRepository constructs the repository.
func NewAttendanceLogRepository(db *sqlx.DB) *AttendanceLogRepository {
	return &AttendanceLogRepository{db: db}
}

// Create appends one audit entry.
func (r *AttendanceLogRepository) Create(ctx context.Context, entry *models.AttendanceLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_logs
	(id, event_id, registration_id, participant_id, action, method, performed_by, reason, created_at)
	VALUES (:id, :event_id, :registration_id, :participant_id, :action, :method, :performed_by, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create attendance log: %w", err)
	}
	return nil
}

// ListForEvent returns an event's audit entries, newest first.
func (r *AttendanceLogRepository) ListForEvent(ctx context.Context, eventID string) ([]models.AttendanceLog, error) {
	const query = `SELECT id, event_id, registration_id, participant_id, action, method, performed_by, reason, created_at
	FROM attendance_logs WHERE event_id = $1 ORDER BY created_at DESC`
	var entries []models.AttendanceLog
	if err := r.db.SelectContext(ctx, &entries, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendance logs: %w", err)
	}
	return entries, nil
}
