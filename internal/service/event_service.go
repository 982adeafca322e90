package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
}

// EventService covers event content CRUD. Status transitions live in
// LifecycleService.
type EventService struct {
	repo      eventStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventStore, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, validator: validate, logger: logger}
}

// Create stores a new draft event owned by the acting organizer.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported event type")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	if req.Type == models.EventTypeMerchandise && req.Stock == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "merchandise events require stock")
	}

	event := &models.Event{
		OrganizerID:          actor.UserID,
		Name:                 req.Name,
		Description:          req.Description,
		Location:             req.Location,
		Type:                 req.Type,
		Status:               models.EventStatusDraft,
		Fee:                  req.Fee,
		Eligibility:          req.Eligibility,
		RegistrationDeadline: req.RegistrationDeadline,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		RegistrationLimit:    req.RegistrationLimit,
		Stock:                req.Stock,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Get fetches one event. Drafts are visible to their organizer only.
func (s *EventService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.Status == models.EventStatusDraft {
		if actor == nil || event.OrganizerID != actor.UserID {
			return nil, appErrors.ErrEventNotFound
		}
	}
	return event, nil
}

// List returns events matching the filter. Non-organizers only see events
// that left draft.
func (s *EventService) List(ctx context.Context, filter models.EventFilter, actor *models.JWTClaims) ([]models.Event, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	visible := events[:0]
	for _, event := range events {
		if event.Status == models.EventStatusDraft {
			if actor == nil || event.OrganizerID != actor.UserID {
				continue
			}
		}
		visible = append(visible, event)
	}
	return visible, nil
}

// Update edits event content, gated by status: drafts allow full edits,
// published events only a restricted subset, later statuses none.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OrganizerID != actor.UserID {
		return nil, appErrors.ErrNotAuthorized
	}

	switch event.Status {
	case models.EventStatusDraft:
		applyFullEdit(event, req)
	case models.EventStatusPublished:
		if err := applyRestrictedEdit(event, req); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "event can no longer be edited")
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

func applyFullEdit(event *models.Event, req dto.UpdateEventRequest) {
	if req.Name != nil {
		event.Name = *req.Name
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Fee != nil {
		event.Fee = *req.Fee
	}
	if req.Eligibility != nil {
		event.Eligibility = req.Eligibility
	}
	if req.RegistrationDeadline != nil {
		event.RegistrationDeadline = *req.RegistrationDeadline
	}
	if req.StartDate != nil {
		event.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		event.EndDate = *req.EndDate
	}
	if req.RegistrationLimit != nil {
		event.RegistrationLimit = req.RegistrationLimit
	}
	if req.Stock != nil {
		event.Stock = req.Stock
	}
}

// applyRestrictedEdit permits only the published-safe subset: description,
// location, and raising the registration limit. Anything else conflicts
// with commitments already made to registrants.
func applyRestrictedEdit(event *models.Event, req dto.UpdateEventRequest) error {
	if req.Name != nil || req.Fee != nil || req.Eligibility != nil ||
		req.RegistrationDeadline != nil || req.StartDate != nil || req.EndDate != nil || req.Stock != nil {
		return appErrors.Clone(appErrors.ErrValidation, "published events allow editing description, location and registration limit only")
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.RegistrationLimit != nil {
		if event.RegistrationLimit != nil && *req.RegistrationLimit < *event.RegistrationLimit {
			return appErrors.Clone(appErrors.ErrValidation, "registration limit cannot be lowered after publishing")
		}
		event.RegistrationLimit = req.RegistrationLimit
	}
	return nil
}
