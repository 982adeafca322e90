package dto

import "github.com/campushub/events-api/internal/models"

// ScanRequest submits a raw scanned or uploaded ticket payload.
type ScanRequest struct {
	Payload string                  `json:"payload" validate:"required"`
	Method  models.AttendanceMethod `json:"method" validate:"required,oneof=QR_SCAN FILE_UPLOAD"`
}

// ManualOverrideRequest marks or unmarks attendance bypassing the scanner.
// A reason is always required for manual actions.
type ManualOverrideRequest struct {
	Action models.ManualAction `json:"action" validate:"required,oneof=MARK UNMARK"`
	Reason string              `json:"reason" validate:"required"`
}

// AttendanceListResponse pairs per-event stats with the tracked registrations.
type AttendanceListResponse struct {
	Stats         models.AttendanceStats      `json:"stats"`
	Registrations []models.RegistrationRecord `json:"registrations"`
}
