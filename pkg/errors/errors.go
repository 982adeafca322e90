package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration and attendance lifecycle errors.
var (
	ErrNotAuthorized         = New("NOT_AUTHORIZED", http.StatusForbidden, "you do not have access to this event")
	ErrInvalidTransition     = New("INVALID_TRANSITION", http.StatusConflict, "event status transition not allowed")
	ErrEventNotFound         = New("EVENT_NOT_FOUND", http.StatusNotFound, "event not found")
	ErrNotEligible           = New("NOT_ELIGIBLE", http.StatusForbidden, "you are not eligible for this event")
	ErrDeadlinePassed        = New("DEADLINE_PASSED", http.StatusConflict, "registration deadline has passed")
	ErrDuplicateRegistration = New("DUPLICATE_REGISTRATION", http.StatusConflict, "you are already registered for this event")
	ErrCapacityExceeded      = New("CAPACITY_EXCEEDED", http.StatusConflict, "event is full or out of stock")
	ErrMissingPaymentProof   = New("MISSING_PAYMENT_PROOF", http.StatusBadRequest, "payment proof is required")
	ErrAlreadyReviewed       = New("ALREADY_REVIEWED", http.StatusConflict, "payment proof has already been reviewed")
	ErrAlreadyTerminal       = New("ALREADY_TERMINAL", http.StatusConflict, "registration is already cancelled or rejected")
	ErrInvalidQR             = New("INVALID_QR", http.StatusBadRequest, "invalid code format")
	ErrInvalidTicket         = New("INVALID_TICKET", http.StatusNotFound, "no registration matches this ticket")
	ErrAlreadyMarked         = New("ALREADY_MARKED", http.StatusConflict, "attendance is already marked")
	ErrNotMarked             = New("NOT_MARKED", http.StatusConflict, "attendance is not marked")
	ErrMissingReason         = New("MISSING_REASON", http.StatusBadRequest, "a reason of at least 3 characters is required")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
