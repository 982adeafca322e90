package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type stubEventStore struct {
	events  map[string]*models.Event
	updated *models.Event
}

func newStubEventStore(events ...*models.Event) *stubEventStore {
	s := &stubEventStore{events: map[string]*models.Event{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *stubEventStore) Create(_ context.Context, event *models.Event) error {
	event.ID = "event-new"
	event.Status = models.EventStatusDraft
	s.events[event.ID] = event
	return nil
}

func (s *stubEventStore) GetByID(_ context.Context, id string) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (s *stubEventStore) List(_ context.Context, _ models.EventFilter) ([]models.Event, error) {
	var out []models.Event
	for _, event := range s.events {
		out = append(out, *event)
	}
	return out, nil
}

func (s *stubEventStore) Update(_ context.Context, event *models.Event) error {
	s.updated = event
	s.events[event.ID] = event
	return nil
}

func validCreateRequest() dto.CreateEventRequest {
	return dto.CreateEventRequest{
		Name:                 "Intro Workshop",
		Description:          "Hands-on session",
		Location:             "Hall A",
		Type:                 models.EventTypeNormal,
		RegistrationDeadline: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		StartDate:            time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2026, 9, 2, 17, 0, 0, 0, time.UTC),
	}
}

func TestEventCreateStartsAsDraft(t *testing.T) {
	store := newStubEventStore()
	svc := NewEventService(store, nil, nil)

	event, err := svc.Create(context.Background(), validCreateRequest(), organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, models.EventStatusDraft, event.Status)
	require.Equal(t, "org-1", event.OrganizerID)
}

func TestEventCreateValidation(t *testing.T) {
	store := newStubEventStore()
	svc := NewEventService(store, nil, nil)

	req := validCreateRequest()
	req.EndDate = req.StartDate
	_, err := svc.Create(context.Background(), req, organizerClaims("org-1"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req = validCreateRequest()
	req.Type = models.EventTypeMerchandise
	_, err = svc.Create(context.Background(), req, organizerClaims("org-1"))
	appErr = appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEventGetHidesDraftFromStrangers(t *testing.T) {
	event := publishedEvent()
	event.Status = models.EventStatusDraft
	store := newStubEventStore(event)
	svc := NewEventService(store, nil, nil)

	_, err := svc.Get(context.Background(), event.ID, participantClaims("p-1"))
	require.ErrorIs(t, err, appErrors.ErrEventNotFound)

	got, err := svc.Get(context.Background(), event.ID, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, event.ID, got.ID)
}

func TestEventListFiltersDrafts(t *testing.T) {
	draft := publishedEvent()
	draft.ID = "event-draft"
	draft.Status = models.EventStatusDraft
	store := newStubEventStore(publishedEvent(), draft)
	svc := NewEventService(store, nil, nil)

	events, err := svc.List(context.Background(), models.EventFilter{}, participantClaims("p-1"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "event-1", events[0].ID)

	events, err = svc.List(context.Background(), models.EventFilter{}, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestEventUpdateFullEditOnDraft(t *testing.T) {
	event := publishedEvent()
	event.Status = models.EventStatusDraft
	store := newStubEventStore(event)
	svc := NewEventService(store, nil, nil)

	name := "Renamed"
	fee := int64(2500)
	updated, err := svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{Name: &name, Fee: &fee}, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, int64(2500), updated.Fee)
}

func TestEventUpdateRestrictedAfterPublish(t *testing.T) {
	event := publishedEvent()
	limit := 50
	event.RegistrationLimit = &limit
	store := newStubEventStore(event)
	svc := NewEventService(store, nil, nil)

	name := "Renamed"
	_, err := svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{Name: &name}, organizerClaims("org-1"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	lower := 40
	_, err = svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{RegistrationLimit: &lower}, organizerClaims("org-1"))
	appErr = appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	higher := 60
	desc := "Updated agenda"
	updated, err := svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{RegistrationLimit: &higher, Description: &desc}, organizerClaims("org-1"))
	require.NoError(t, err)
	require.Equal(t, 60, *updated.RegistrationLimit)
	require.Equal(t, "Updated agenda", updated.Description)
}

func TestEventUpdateLockedAfterOngoing(t *testing.T) {
	event := publishedEvent()
	event.Status = models.EventStatusOngoing
	store := newStubEventStore(event)
	svc := NewEventService(store, nil, nil)

	desc := "too late"
	_, err := svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{Description: &desc}, organizerClaims("org-1"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestEventUpdateRejectsForeignOrganizer(t *testing.T) {
	event := publishedEvent()
	store := newStubEventStore(event)
	svc := NewEventService(store, nil, nil)

	desc := "hijack"
	_, err := svc.Update(context.Background(), event.ID,
		dto.UpdateEventRequest{Description: &desc}, organizerClaims("org-2"))
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
}
