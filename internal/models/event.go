package models

import "time"

// EventType distinguishes capacity-bound workshops from stock-bound
// merchandise sales.
type EventType string

const (
	EventTypeNormal      EventType = "NORMAL"
	EventTypeMerchandise EventType = "MERCHANDISE"
)

// Valid returns true when the type is a supported value.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeNormal, EventTypeMerchandise:
		return true
	default:
		return false
	}
}

// EventStatus models the event lifecycle. Transitions are monotonic in the
// sequence DRAFT -> PUBLISHED -> ONGOING -> COMPLETED, with CLOSED reachable
// from PUBLISHED/ONGOING as an organizer-initiated terminal override.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusOngoing   EventStatus = "ONGOING"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusClosed    EventStatus = "CLOSED"
)

// Valid returns true when the status is a supported value.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusOngoing, EventStatusCompleted, EventStatusClosed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can leave the status.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusClosed
}

// Event represents a campus event owned by an organizer.
type Event struct {
	ID                   string      `db:"id" json:"id"`
	OrganizerID          string      `db:"organizer_id" json:"organizer_id"`
	Name                 string      `db:"name" json:"name"`
	Description          string      `db:"description" json:"description"`
	Location             string      `db:"location" json:"location"`
	Type                 EventType   `db:"type" json:"type"`
	Status               EventStatus `db:"status" json:"status"`
	Fee                  int64       `db:"fee" json:"fee"`
	Eligibility          *string     `db:"eligibility" json:"eligibility,omitempty"`
	RegistrationDeadline time.Time   `db:"registration_deadline" json:"registration_deadline"`
	StartDate            time.Time   `db:"start_date" json:"start_date"`
	EndDate              time.Time   `db:"end_date" json:"end_date"`
	RegistrationLimit    *int        `db:"registration_limit" json:"registration_limit,omitempty"`
	Stock                *int        `db:"stock" json:"stock,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// RequiresPaymentProof reports whether registrations for this event go
// through the payment review path before a ticket is issued.
func (e *Event) RequiresPaymentProof() bool {
	return e.Type == EventTypeMerchandise || e.Fee > 0
}

// EventFilter scopes event listing queries.
type EventFilter struct {
	OrganizerID string
	Status      *EventStatus
	Type        *EventType
	Search      string
	Page        int
	PageSize    int
}
