package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/events-api/internal/models"
)

const eventColumns = `id, organizer_id, name, description, location, type, status, fee, eligibility,
       registration_deadline, start_date, end_date, registration_limit, stock, created_at, updated_at`

// EventRepository persists events and owns their status transitions at the
// storage level.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event row.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = models.EventStatusDraft
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO events
	(id, organizer_id, name, description, location, type, status, fee, eligibility,
	 registration_deadline, start_date, end_date, registration_limit, stock, created_at, updated_at)
	VALUES (:id, :organizer_id, :name, :description, :location, :type, :status, :fee, :eligibility,
	 :registration_deadline, :start_date, :end_date, :registration_limit, :stock, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events matching the filter, newest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + eventColumns + ` FROM events`)

	conditions := make([]string, 0, 4)
	if filter.OrganizerID != "" {
		args = append(args, filter.OrganizerID)
		conditions = append(conditions, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize))

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Update rewrites the mutable content columns. Status is never touched here;
// transitions go through TransitionStatus or AdvanceTime.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET
	name = :name, description = :description, location = :location, fee = :fee,
	eligibility = :eligibility, registration_deadline = :registration_deadline,
	start_date = :start_date, end_date = :end_date,
	registration_limit = :registration_limit, stock = :stock, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionStatus moves an event to a new status only when its current
// status is one of the allowed sources. Returns sql.ErrNoRows when no row
// matched, which callers surface as an invalid transition.
func (r *EventRepository) TransitionStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("transition requires at least one source status")
	}
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to, id)
	placeholders := make([]string, len(from))
	for i, status := range from {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2 AND status IN (%s)`,
		strings.Join(placeholders, ","),
	)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition event status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdvanceTime applies the time-driven bulk transitions. Both statements are
// idempotent: rerunning with the same clock reading matches no further rows.
// DRAFT and CLOSED events are never touched.
func (r *EventRepository) AdvanceTime(ctx context.Context, now time.Time) (started, completed int64, err error) {
	const startQuery = `UPDATE events SET status = $1, updated_at = $2
	WHERE status = $3 AND start_date <= $2`
	result, err := r.db.ExecContext(ctx, startQuery, models.EventStatusOngoing, now, models.EventStatusPublished)
	if err != nil {
		return 0, 0, fmt.Errorf("advance published events: %w", err)
	}
	started, _ = result.RowsAffected()

	const completeQuery = `UPDATE events SET status = $1, updated_at = $2
	WHERE status = $3 AND end_date < $2`
	result, err = r.db.ExecContext(ctx, completeQuery, models.EventStatusCompleted, now, models.EventStatusOngoing)
	if err != nil {
		return started, 0, fmt.Errorf("complete ongoing events: %w", err)
	}
	completed, _ = result.RowsAffected()
	return started, completed, nil
}

// DecrementStock atomically takes one unit of merchandise stock. Returns
// sql.ErrNoRows when the event has no stock left, so stock never goes
// negative under concurrent approvals.
func (r *EventRepository) DecrementStock(ctx context.Context, id string) error {
	const query = `UPDATE events SET stock = stock - 1, updated_at = NOW()
	WHERE id = $1 AND type = $2 AND stock > 0`
	result, err := r.db.ExecContext(ctx, query, id, models.EventTypeMerchandise)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check stock decrement rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RestoreStock atomically returns one unit of merchandise stock after a
// cancellation.
func (r *EventRepository) RestoreStock(ctx context.Context, id string) error {
	const query = `UPDATE events SET stock = stock + 1, updated_at = NOW()
	WHERE id = $1 AND type = $2`
	if _, err := r.db.ExecContext(ctx, query, id, models.EventTypeMerchandise); err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}
