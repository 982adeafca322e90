package models

import "time"

// AttendanceAction describes what a log entry did to the attendance flag.
type AttendanceAction string

const (
	AttendanceActionMarked   AttendanceAction = "MARKED"
	AttendanceActionUnmarked AttendanceAction = "UNMARKED"
)

// AttendanceMethod records how an attendance change was performed.
type AttendanceMethod string

const (
	AttendanceMethodQRScan     AttendanceMethod = "QR_SCAN"
	AttendanceMethodFileUpload AttendanceMethod = "FILE_UPLOAD"
	AttendanceMethodManual     AttendanceMethod = "MANUAL"
)

// Valid returns true when the method is a supported value.
func (m AttendanceMethod) Valid() bool {
	switch m {
	case AttendanceMethodQRScan, AttendanceMethodFileUpload, AttendanceMethodManual:
		return true
	default:
		return false
	}
}

// AttendanceLog is an append-only audit record. Every mutation of a
// registration's attendance flag produces exactly one entry; entries are
// never updated or deleted.
type AttendanceLog struct {
	ID             string           `db:"id" json:"id"`
	EventID        string           `db:"event_id" json:"event_id"`
	RegistrationID string           `db:"registration_id" json:"registration_id"`
	ParticipantID  string           `db:"participant_id" json:"participant_id"`
	Action         AttendanceAction `db:"action" json:"action"`
	Method         AttendanceMethod `db:"method" json:"method"`
	PerformedBy    string           `db:"performed_by" json:"performed_by"`
	Reason         *string          `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceStats summarises scan progress for one event.
type AttendanceStats struct {
	Total      int     `json:"total"`
	Scanned    int     `json:"scanned"`
	NotScanned int     `json:"not_scanned"`
	ScanRate   float64 `json:"scan_rate"`
}

// ScanResult is the outcome of processing a scanned ticket payload. A
// duplicate scan is a success, not an error: Duplicate is true and MarkedAt
// carries the original timestamp so the scanner can show when the ticket was
// first used.
type ScanResult struct {
	Registration *Registration `json:"registration"`
	Duplicate    bool          `json:"duplicate"`
	MarkedAt     time.Time     `json:"marked_at"`
}

// ManualAction selects the direction of a manual attendance override.
type ManualAction string

const (
	ManualActionMark   ManualAction = "MARK"
	ManualActionUnmark ManualAction = "UNMARK"
)
