package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushub/events-api/internal/models"
)

const registrationColumns = `id, event_id, participant_id, status, ticket_id, form_responses,
       attendance_marked, attendance_at, payment_proof_ref, payment_status,
       payment_reviewed_by, payment_reviewed_at, payment_rejection_reason, created_at, updated_at`

// RegistrationRepository persists registration rows. Rows are insert-and-
// update only; nothing here deletes.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// IsUniqueViolation reports whether the error is a Postgres unique-index
// violation. The registrations table carries a partial unique index on
// (participant_id, event_id) over active statuses, which backstops the
// duplicate-registration check under concurrent inserts.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create inserts a new registration row.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now
	const query = `INSERT INTO registrations
	(id, event_id, participant_id, status, ticket_id, form_responses,
	 attendance_marked, attendance_at, payment_proof_ref, payment_status,
	 payment_reviewed_by, payment_reviewed_at, payment_rejection_reason, created_at, updated_at)
	VALUES (:id, :event_id, :participant_id, :status, :ticket_id, :form_responses,
	 :attendance_marked, :attendance_at, :payment_proof_ref, :payment_status,
	 :payment_reviewed_by, :payment_reviewed_at, :payment_rejection_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// GetByID fetches a registration by identifier.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindActive returns the participant's active registration for an event, if
// any. Cancelled and rejected rows do not count.
func (r *RegistrationRepository) FindActive(ctx context.Context, participantID, eventID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
	WHERE participant_id = $1 AND event_id = $2 AND status NOT IN ($3, $4)
	LIMIT 1`
	var reg models.Registration
	err := r.db.GetContext(ctx, &reg, query, participantID, eventID,
		models.RegistrationStatusCancelled, models.RegistrationStatusRejected)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByTicket resolves a registration by the full identity triple. All
// three fields must match so a forged or mismatched payload cannot reach an
// unrelated registration.
func (r *RegistrationRepository) FindByTicket(ctx context.Context, ticketID, eventID, participantID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
	WHERE ticket_id = $1 AND event_id = $2 AND participant_id = $3`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, ticketID, eventID, participantID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// CountActiveForEvent counts registrations occupying capacity.
func (r *RegistrationRepository) CountActiveForEvent(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations
	WHERE event_id = $1 AND status NOT IN ($2, $3)`
	var count int
	err := r.db.GetContext(ctx, &count, query, eventID,
		models.RegistrationStatusCancelled, models.RegistrationStatusRejected)
	if err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

// TicketExists reports whether a ticket identifier is already in use.
func (r *RegistrationRepository) TicketExists(ctx context.Context, ticketID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM registrations WHERE ticket_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, ticketID); err != nil {
		return false, fmt.Errorf("check ticket id: %w", err)
	}
	return exists, nil
}

// ListForEvent returns the attendance-tracked registrations for an event
// joined with participant metadata.
func (r *RegistrationRepository) ListForEvent(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, error) {
	builder := strings.Builder{}
	args := []interface{}{filter.EventID}
	builder.WriteString(`SELECT r.id, r.event_id, r.participant_id, r.status, r.ticket_id, r.form_responses,
	 r.attendance_marked, r.attendance_at, r.payment_proof_ref, r.payment_status,
	 r.payment_reviewed_by, r.payment_reviewed_at, r.payment_rejection_reason, r.created_at, r.updated_at,
	 u.full_name AS participant_name, u.email AS participant_email
	FROM registrations r
	JOIN users u ON u.id = r.participant_id
	WHERE r.event_id = $1`)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		builder.WriteString(fmt.Sprintf(" AND r.status = $%d", len(args)))
	} else {
		args = append(args,
			models.RegistrationStatusRegistered,
			models.RegistrationStatusApproved,
			models.RegistrationStatusCompleted)
		builder.WriteString(fmt.Sprintf(" AND r.status IN ($%d, $%d, $%d)", len(args)-2, len(args)-1, len(args)))
	}
	builder.WriteString(" ORDER BY r.created_at ASC")

	var records []models.RegistrationRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return records, nil
}

// ListForParticipant returns all of a participant's registrations.
func (r *RegistrationRepository) ListForParticipant(ctx context.Context, participantID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
	WHERE participant_id = $1 ORDER BY created_at DESC`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, participantID); err != nil {
		return nil, fmt.Errorf("list participant registrations: %w", err)
	}
	return regs, nil
}

// MarkAttendance flips the attendance flag on, guarded on it being off.
// Returns sql.ErrNoRows when the flag was already set: of two concurrent
// scans exactly one wins this update and the loser takes the duplicate path.
func (r *RegistrationRepository) MarkAttendance(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE registrations
	SET attendance_marked = TRUE, attendance_at = $2, updated_at = $2
	WHERE id = $1 AND attendance_marked = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mark rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UnmarkAttendance clears the attendance flag, guarded on it being set.
func (r *RegistrationRepository) UnmarkAttendance(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE registrations
	SET attendance_marked = FALSE, attendance_at = NULL, updated_at = $2
	WHERE id = $1 AND attendance_marked = TRUE`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("unmark attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check unmark rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApprovePaymentParams groups the columns written on approval.
type ApprovePaymentParams struct {
	ID         string
	TicketID   string
	ReviewedBy string
	ReviewedAt time.Time
}

// ApprovePayment approves a pending payment proof and mints the ticket in a
// single conditional update. Returns sql.ErrNoRows when the proof was
// already reviewed, preventing double ticket mints and double stock
// decrements under duplicate submissions.
func (r *RegistrationRepository) ApprovePayment(ctx context.Context, params ApprovePaymentParams) error {
	const query = `UPDATE registrations
	SET status = :status, ticket_id = :ticket_id, payment_status = :payment_status,
	    payment_reviewed_by = :reviewed_by, payment_reviewed_at = :reviewed_at, updated_at = :reviewed_at
	WHERE id = :id AND payment_status = :pending`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"status":         models.RegistrationStatusApproved,
		"ticket_id":      params.TicketID,
		"payment_status": models.PaymentStatusApproved,
		"reviewed_by":    params.ReviewedBy,
		"reviewed_at":    params.ReviewedAt,
		"pending":        models.PaymentStatusPending,
	})
	if err != nil {
		return fmt.Errorf("approve payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RejectPaymentParams groups the columns written on rejection.
type RejectPaymentParams struct {
	ID         string
	ReviewedBy string
	ReviewedAt time.Time
	Reason     string
}

// RejectPayment rejects a pending payment proof under the same
// compare-and-set guard as approval.
func (r *RegistrationRepository) RejectPayment(ctx context.Context, params RejectPaymentParams) error {
	const query = `UPDATE registrations
	SET status = :status, payment_status = :payment_status,
	    payment_reviewed_by = :reviewed_by, payment_reviewed_at = :reviewed_at,
	    payment_rejection_reason = :reason, updated_at = :reviewed_at
	WHERE id = :id AND payment_status = :pending`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"status":         models.RegistrationStatusRejected,
		"payment_status": models.PaymentStatusRejected,
		"reviewed_by":    params.ReviewedBy,
		"reviewed_at":    params.ReviewedAt,
		"reason":         params.Reason,
		"pending":        models.PaymentStatusPending,
	})
	if err != nil {
		return fmt.Errorf("reject payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reject rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel marks a registration cancelled, guarded against terminal statuses.
func (r *RegistrationRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3
	WHERE id = $1 AND status NOT IN ($4, $5)`
	result, err := r.db.ExecContext(ctx, query, id,
		models.RegistrationStatusCancelled, at,
		models.RegistrationStatusCancelled, models.RegistrationStatusRejected)
	if err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates attendance progress over the attendance-eligible
// statuses for one event.
func (r *RegistrationRepository) Stats(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	const query = `SELECT
	 COUNT(*) AS total,
	 COUNT(*) FILTER (WHERE attendance_marked) AS scanned
	FROM registrations
	WHERE event_id = $1 AND status IN ($2, $3, $4)`
	var row struct {
		Total   int `db:"total"`
		Scanned int `db:"scanned"`
	}
	err := r.db.GetContext(ctx, &row, query, eventID,
		models.RegistrationStatusRegistered,
		models.RegistrationStatusApproved,
		models.RegistrationStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("attendance stats: %w", err)
	}
	stats := &models.AttendanceStats{
		Total:      row.Total,
		Scanned:    row.Scanned,
		NotScanned: row.Total - row.Scanned,
	}
	if row.Total > 0 {
		stats.ScanRate = float64(row.Scanned) / float64(row.Total) * 100
	}
	return stats, nil
}
