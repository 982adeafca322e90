package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/events-api/pkg/jobs"
)

// TicketNotificationPayload is the job payload delivered to the worker.
type TicketNotificationPayload struct {
	ParticipantID string `json:"participant_id"`
	EventID       string `json:"event_id"`
	TicketID      string `json:"ticket_id"`
}

// NotificationService delivers ticket notifications via the background
// worker queue. Everything here is best effort: an undeliverable
// notification never blocks or fails the registration flow that produced it.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service. The queue must be built
// around this service's Handle and started by the caller.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger}
}

// Bind attaches the started queue the notifications are dispatched onto.
func (s *NotificationService) Bind(queue *jobs.Queue) {
	s.queue = queue
}

// SendTicketNotification enqueues one ticket notification.
func (s *NotificationService) SendTicketNotification(_ context.Context, participantID, eventID, ticketID string) error {
	if s.queue == nil {
		s.logger.Debug("notification queue not bound, dropping notification",
			zap.String("ticket_id", ticketID))
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: "ticket.issued",
		Payload: TicketNotificationPayload{
			ParticipantID: participantID,
			EventID:       eventID,
			TicketID:      ticketID,
		},
	})
}

// Handle processes one queued notification. The transport here is the
// application log; a mail or push integration slots in behind this handler
// without touching the callers.
func (s *NotificationService) Handle(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(TicketNotificationPayload)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("ticket notification delivered",
		zap.String("participant_id", payload.ParticipantID),
		zap.String("event_id", payload.EventID),
		zap.String("ticket_id", payload.TicketID))
	return nil
}
