package dto

import "github.com/campushub/events-api/internal/models"

// RegisterRequest is a participant's registration or purchase attempt.
type RegisterRequest struct {
	EventID         string `json:"event_id" validate:"required"`
	FormResponses   []byte `json:"form_responses,omitempty"`
	PaymentProofRef string `json:"payment_proof_ref,omitempty"`
}

// ReviewPaymentRequest carries the organizer's verdict on a payment proof.
type ReviewPaymentRequest struct {
	Decision models.ReviewDecision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Reason   string                `json:"reason,omitempty"`
}
