package dto

import (
	"time"

	"github.com/campushub/events-api/internal/models"
)

// CreateEventRequest creates a new draft event.
type CreateEventRequest struct {
	Name                 string           `json:"name" validate:"required,min=3"`
	Description          string           `json:"description"`
	Location             string           `json:"location"`
	Type                 models.EventType `json:"type" validate:"required"`
	Fee                  int64            `json:"fee" validate:"gte=0"`
	Eligibility          *string          `json:"eligibility,omitempty"`
	RegistrationDeadline time.Time        `json:"registration_deadline" validate:"required"`
	StartDate            time.Time        `json:"start_date" validate:"required"`
	EndDate              time.Time        `json:"end_date" validate:"required"`
	RegistrationLimit    *int             `json:"registration_limit,omitempty" validate:"omitempty,gt=0"`
	Stock                *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

// UpdateEventRequest edits an existing event. Which fields are honoured
// depends on the event status: drafts allow full edits, published events a
// restricted subset, later statuses none.
type UpdateEventRequest struct {
	Name                 *string    `json:"name,omitempty" validate:"omitempty,min=3"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Fee                  *int64     `json:"fee,omitempty" validate:"omitempty,gte=0"`
	Eligibility          *string    `json:"eligibility,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	EndDate              *time.Time `json:"end_date,omitempty"`
	RegistrationLimit    *int       `json:"registration_limit,omitempty" validate:"omitempty,gt=0"`
	Stock                *int       `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

// SetStatusRequest is an explicit organizer-driven status change.
type SetStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required"`
}
