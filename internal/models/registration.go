package models

import "time"

// RegistrationStatus models a participant's relationship to one event.
type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "PENDING"
	RegistrationStatusRegistered RegistrationStatus = "REGISTERED"
	RegistrationStatusApproved   RegistrationStatus = "APPROVED"
	RegistrationStatusCompleted  RegistrationStatus = "COMPLETED"
	RegistrationStatusCancelled  RegistrationStatus = "CANCELLED"
	RegistrationStatusRejected   RegistrationStatus = "REJECTED"
)

// Active reports whether the registration still occupies the participant's
// single slot for the event. At most one active registration may exist per
// (participant, event) pair.
func (s RegistrationStatus) Active() bool {
	return s != RegistrationStatusCancelled && s != RegistrationStatusRejected
}

// Terminal reports whether the registration can no longer be cancelled.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationStatusCancelled || s == RegistrationStatusRejected
}

// CountsForAttendance reports whether the registration belongs to the
// attendance-eligible set used for stats and scanning.
func (s RegistrationStatus) CountsForAttendance() bool {
	switch s {
	case RegistrationStatusRegistered, RegistrationStatusApproved, RegistrationStatusCompleted:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks the review state of a submitted payment proof.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Registration links one participant to one event. Rows are never deleted;
// cancellations and rejections are terminal statuses.
type Registration struct {
	ID            string             `db:"id" json:"id"`
	EventID       string             `db:"event_id" json:"event_id"`
	ParticipantID string             `db:"participant_id" json:"participant_id"`
	Status        RegistrationStatus `db:"status" json:"status"`
	TicketID      *string            `db:"ticket_id" json:"ticket_id,omitempty"`
	FormResponses []byte             `db:"form_responses" json:"form_responses,omitempty"`

	AttendanceMarked bool       `db:"attendance_marked" json:"attendance_marked"`
	AttendanceAt     *time.Time `db:"attendance_at" json:"attendance_at,omitempty"`

	PaymentProofRef        *string        `db:"payment_proof_ref" json:"payment_proof_ref,omitempty"`
	PaymentStatus          *PaymentStatus `db:"payment_status" json:"payment_status,omitempty"`
	PaymentReviewedBy      *string        `db:"payment_reviewed_by" json:"payment_reviewed_by,omitempty"`
	PaymentReviewedAt      *time.Time     `db:"payment_reviewed_at" json:"payment_reviewed_at,omitempty"`
	PaymentRejectionReason *string        `db:"payment_rejection_reason" json:"payment_rejection_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationRecord extends the registration row with participant metadata
// for organizer-facing listings.
type RegistrationRecord struct {
	Registration
	ParticipantName  string `db:"participant_name" json:"participant_name"`
	ParticipantEmail string `db:"participant_email" json:"participant_email"`
}

// RegistrationFilter scopes registration listing queries.
type RegistrationFilter struct {
	EventID       string
	ParticipantID string
	Status        *RegistrationStatus
	Page          int
	PageSize      int
}

// ReviewDecision is the organizer's verdict on a payment proof.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "APPROVE"
	ReviewDecisionReject  ReviewDecision = "REJECT"
)
