package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	"github.com/campushub/events-api/internal/repository"
	appErrors "github.com/campushub/events-api/pkg/errors"
	"github.com/campushub/events-api/pkg/ticket"
)

const ticketMintAttempts = 5

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	FindActive(ctx context.Context, participantID, eventID string) (*models.Registration, error)
	CountActiveForEvent(ctx context.Context, eventID string) (int, error)
	TicketExists(ctx context.Context, ticketID string) (bool, error)
	ListForParticipant(ctx context.Context, participantID string) ([]models.Registration, error)
	ApprovePayment(ctx context.Context, params repository.ApprovePaymentParams) error
	RejectPayment(ctx context.Context, params repository.RejectPaymentParams) error
	Cancel(ctx context.Context, id string, at time.Time) error
}

type registrationEventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	DecrementStock(ctx context.Context, id string) error
	RestoreStock(ctx context.Context, id string) error
}

type participantStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TicketNotifier delivers ticket notifications. Delivery is best effort:
// the registration flow logs and swallows its failures.
type TicketNotifier interface {
	SendTicketNotification(ctx context.Context, participantID, eventID, ticketID string) error
}

// RegistrationService governs a participant's relationship to one event:
// creation, payment review and cancellation.
type RegistrationService struct {
	repo     registrationStore
	events   registrationEventStore
	users    participantStore
	notifier TicketNotifier
	logger   *zap.Logger
	clock    func() time.Time
}

// NewRegistrationService constructs the service.
func NewRegistrationService(repo registrationStore, events registrationEventStore, users participantStore, notifier TicketNotifier, logger *zap.Logger, clock func() time.Time) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &RegistrationService{repo: repo, events: events, users: users, notifier: notifier, logger: logger, clock: clock}
}

// Register creates a registration or purchase attempt for the acting
// participant.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegisterRequest, actor *models.JWTClaims) (*models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	switch event.Status {
	case models.EventStatusDraft:
		return nil, appErrors.ErrEventNotFound
	case models.EventStatusPublished, models.EventStatusOngoing:
	default:
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "event is no longer open for registration")
	}

	if err := s.checkEligibility(ctx, event, actor.UserID); err != nil {
		return nil, err
	}

	now := s.clock()
	if now.After(event.RegistrationDeadline) {
		return nil, appErrors.ErrDeadlinePassed
	}

	if _, err := s.repo.FindActive(ctx, actor.UserID, event.ID); err == nil {
		return nil, appErrors.ErrDuplicateRegistration
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	}

	if err := s.checkCapacity(ctx, event); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		EventID:       event.ID,
		ParticipantID: actor.UserID,
		FormResponses: append([]byte(nil), req.FormResponses...),
	}

	if event.RequiresPaymentProof() {
		proof := strings.TrimSpace(req.PaymentProofRef)
		if proof == "" {
			return nil, appErrors.ErrMissingPaymentProof
		}
		pending := models.PaymentStatusPending
		reg.Status = models.RegistrationStatusPending
		reg.PaymentProofRef = &proof
		reg.PaymentStatus = &pending
	} else {
		ticketID, err := s.mintTicket(ctx)
		if err != nil {
			return nil, err
		}
		reg.Status = models.RegistrationStatusRegistered
		reg.TicketID = &ticketID
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateRegistration
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	if reg.TicketID != nil {
		s.notifyTicket(ctx, reg.ParticipantID, reg.EventID, *reg.TicketID)
	}
	return reg, nil
}

// ReviewPayment applies the organizer's verdict on a pending payment proof.
// The approval is a compare-and-set on the proof status, so a duplicate
// submission cannot mint a second ticket or take a second unit of stock.
func (s *RegistrationService) ReviewPayment(ctx context.Context, regID string, req dto.ReviewPaymentRequest, actor *models.JWTClaims) (*models.Registration, error) {
	reg, event, err := s.loadForOrganizer(ctx, regID, actor)
	if err != nil {
		return nil, err
	}
	if reg.PaymentStatus == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration has no payment proof to review")
	}
	if *reg.PaymentStatus != models.PaymentStatusPending {
		return nil, appErrors.ErrAlreadyReviewed
	}

	now := s.clock()
	switch req.Decision {
	case models.ReviewDecisionApprove:
		ticketID, err := s.mintTicket(ctx)
		if err != nil {
			return nil, err
		}
		err = s.repo.ApprovePayment(ctx, repository.ApprovePaymentParams{
			ID:         reg.ID,
			TicketID:   ticketID,
			ReviewedBy: actor.UserID,
			ReviewedAt: now,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrAlreadyReviewed
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve payment")
		}
		if event.Type == models.EventTypeMerchandise {
			if err := s.events.DecrementStock(ctx, event.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					// Stock reached zero between the capacity check and this
					// approval; the decrement clamps rather than going negative.
					s.logger.Warn("approved purchase with exhausted stock",
						zap.String("event_id", event.ID), zap.String("registration_id", reg.ID))
				} else {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decrement stock")
				}
			}
		}
		s.notifyTicket(ctx, reg.ParticipantID, reg.EventID, ticketID)
	case models.ReviewDecisionReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
		}
		err = s.repo.RejectPayment(ctx, repository.RejectPaymentParams{
			ID:         reg.ID,
			ReviewedBy: actor.UserID,
			ReviewedAt: now,
			Reason:     reason,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrAlreadyReviewed
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject payment")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or REJECT")
	}

	updated, err := s.repo.GetByID(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
	}
	return updated, nil
}

// Cancel lets the owning participant withdraw a registration. Merchandise
// stock taken at approval is returned.
func (s *RegistrationService) Cancel(ctx context.Context, regID string, actor *models.JWTClaims) (*models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reg, err := s.repo.GetByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if reg.ParticipantID != actor.UserID {
		return nil, appErrors.ErrNotAuthorized
	}
	if reg.Status.Terminal() {
		return nil, appErrors.ErrAlreadyTerminal
	}

	stockWasTaken := reg.PaymentStatus != nil && *reg.PaymentStatus == models.PaymentStatusApproved

	if err := s.repo.Cancel(ctx, reg.ID, s.clock()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyTerminal
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
	}

	if stockWasTaken {
		event, err := s.events.GetByID(ctx, reg.EventID)
		if err == nil && event.Type == models.EventTypeMerchandise {
			if err := s.events.RestoreStock(ctx, event.ID); err != nil {
				s.logger.Warn("failed to restore stock after cancellation",
					zap.String("event_id", event.ID), zap.Error(err))
			}
		}
	}

	updated, err := s.repo.GetByID(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
	}
	return updated, nil
}

// TicketQR renders the participant's ticket as a PNG QR image. Only the
// owning participant can fetch it, and only once a ticket exists.
func (s *RegistrationService) TicketQR(ctx context.Context, regID string, actor *models.JWTClaims) ([]byte, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reg, err := s.repo.GetByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if reg.ParticipantID != actor.UserID {
		return nil, appErrors.ErrNotAuthorized
	}
	if reg.TicketID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no ticket has been issued for this registration")
	}

	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	user, err := s.users.FindByID(ctx, reg.ParticipantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	png, err := ticket.RenderQR(ticket.Payload{
		TicketID:        *reg.TicketID,
		EventID:         event.ID,
		ParticipantID:   user.ID,
		EventName:       event.Name,
		ParticipantName: user.FullName,
	}, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ticket")
	}
	return png, nil
}

// ListMine returns the acting participant's registrations.
func (s *RegistrationService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	regs, err := s.repo.ListForParticipant(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

func (s *RegistrationService) checkEligibility(ctx context.Context, event *models.Event, participantID string) error {
	if event.Eligibility == nil || strings.TrimSpace(*event.Eligibility) == "" {
		return nil
	}
	user, err := s.users.FindByID(ctx, participantID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if user.Cohort == nil || !strings.EqualFold(*user.Cohort, *event.Eligibility) {
		return appErrors.ErrNotEligible
	}
	return nil
}

func (s *RegistrationService) checkCapacity(ctx context.Context, event *models.Event) error {
	switch event.Type {
	case models.EventTypeNormal:
		if event.RegistrationLimit == nil {
			return nil
		}
		count, err := s.repo.CountActiveForEvent(ctx, event.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
		}
		if count >= *event.RegistrationLimit {
			return appErrors.ErrCapacityExceeded
		}
	case models.EventTypeMerchandise:
		// Stock is only decremented at payment approval, never here, so an
		// abandoned attempt does not hold a unit.
		if event.Stock == nil || *event.Stock <= 0 {
			return appErrors.ErrCapacityExceeded
		}
	}
	return nil
}

// mintTicket generates a globally unique ticket identifier, collision
// checked against existing registrations.
func (s *RegistrationService) mintTicket(ctx context.Context) (string, error) {
	for i := 0; i < ticketMintAttempts; i++ {
		candidate := fmt.Sprintf("TKT-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
		exists, err := s.repo.TicketExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ticket id")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not mint a unique ticket id")
}

func (s *RegistrationService) notifyTicket(ctx context.Context, participantID, eventID, ticketID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendTicketNotification(ctx, participantID, eventID, ticketID); err != nil {
		s.logger.Warn("ticket notification failed",
			zap.String("participant_id", participantID),
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

func (s *RegistrationService) loadForOrganizer(ctx context.Context, regID string, actor *models.JWTClaims) (*models.Registration, *models.Event, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	reg, err := s.repo.GetByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OrganizerID != actor.UserID {
		return nil, nil, appErrors.ErrNotAuthorized
	}
	return reg, event, nil
}
