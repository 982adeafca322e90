package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrInvalidFormat signals that a scanned payload is not well-formed.
var ErrInvalidFormat = errors.New("invalid code format")

// IncompleteError reports which identity fields are missing from a decoded
// payload. Decoded payloads are untrusted and must be validated before any
// registration lookup.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete ticket data: missing %s", strings.Join(e.Missing, ", "))
}

// Payload is the identity bundle embedded in a scannable code. The JSON key
// set is a wire contract shared with the ticket rendering and scanner
// clients; do not rename fields.
type Payload struct {
	TicketID        string `json:"ticketId"`
	EventID         string `json:"eventId"`
	ParticipantID   string `json:"participantId"`
	EventName       string `json:"eventName"`
	ParticipantName string `json:"participantName"`
}

// Validate checks the presence of the identity fields required to resolve a
// registration.
func (p *Payload) Validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(p.TicketID) == "" {
		missing = append(missing, "ticketId")
	}
	if strings.TrimSpace(p.EventID) == "" {
		missing = append(missing, "eventId")
	}
	if strings.TrimSpace(p.ParticipantID) == "" {
		missing = append(missing, "participantId")
	}
	if strings.TrimSpace(p.EventName) == "" {
		missing = append(missing, "eventName")
	}
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}

// Encode serialises the payload into its canonical wire form. Encode and
// Decode round-trip exactly.
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode ticket payload: %w", err)
	}
	return string(raw), nil
}

// Decode parses a raw scanned payload. The result is untrusted; callers must
// run Validate before using it for lookups.
func Decode(raw string) (*Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil, ErrInvalidFormat
	}
	var p Payload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return nil, ErrInvalidFormat
	}
	return &p, nil
}

// RenderQR renders the encoded payload as a PNG QR image suitable for the
// participant-facing ticket.
func RenderQR(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	encoded, err := Encode(p)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(encoded, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return png, nil
}
