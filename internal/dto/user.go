package dto

// CreateOrganizerRequest provisions an organizer account (admin only).
type CreateOrganizerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,min=2"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignupRequest self-registers a participant account.
type SignupRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required,min=2"`
	Password string  `json:"password" validate:"required,min=8"`
	Cohort   *string `json:"cohort,omitempty"`
}
