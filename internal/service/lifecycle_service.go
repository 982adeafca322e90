package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type lifecycleEventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	TransitionStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus) error
	AdvanceTime(ctx context.Context, now time.Time) (started, completed int64, err error)
}

// LifecycleService owns event status transitions: the explicit
// organizer-driven ones and the time-driven sweep.
type LifecycleService struct {
	repo    lifecycleEventStore
	logger  *zap.Logger
	clock   func() time.Time
	metrics *MetricsService
}

// NewLifecycleService constructs the service. A nil clock defaults to UTC
// wall time; tests inject their own.
func NewLifecycleService(repo lifecycleEventStore, logger *zap.Logger, clock func() time.Time) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &LifecycleService{repo: repo, logger: logger, clock: clock}
}

// BindMetrics attaches the metrics collector. Optional.
func (s *LifecycleService) BindMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Publish moves a draft event to PUBLISHED.
func (s *LifecycleService) Publish(ctx context.Context, eventID string, actor *models.JWTClaims) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	err = s.repo.TransitionStatus(ctx, event.ID, []models.EventStatus{models.EventStatusDraft}, models.EventStatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only draft events can be published")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish event")
	}
	return s.reload(ctx, event.ID)
}

// SetStatus applies an explicit organizer-driven status change. Legal only
// from PUBLISHED or ONGOING, and never touches attendance.
func (s *LifecycleService) SetStatus(ctx context.Context, eventID string, newStatus models.EventStatus, actor *models.JWTClaims) (*models.Event, error) {
	switch newStatus {
	case models.EventStatusPublished, models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusClosed:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "unsupported target status")
	}
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	err = s.repo.TransitionStatus(ctx, event.ID,
		[]models.EventStatus{models.EventStatusPublished, models.EventStatusOngoing}, newStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set event status")
	}
	return s.reload(ctx, event.ID)
}

// AdvanceTime applies the time-driven transitions for the supplied clock
// reading. Idempotent: a second call with the same reading changes nothing.
func (s *LifecycleService) AdvanceTime(ctx context.Context, now time.Time) error {
	started, completed, err := s.repo.AdvanceTime(ctx, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "lifecycle sweep failed")
	}
	s.metrics.RecordSweepTransitions(started, completed)
	if started > 0 || completed > 0 {
		s.logger.Info("lifecycle sweep applied transitions",
			zap.Int64("started", started),
			zap.Int64("completed", completed),
			zap.Time("now", now))
	}
	return nil
}

// Run executes the periodic sweep until the context is cancelled. Status
// transitions may lag a real-world boundary by up to the interval; a manual
// SetStatus racing the sweep resolves as last write wins.
func (s *LifecycleService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Sugar().Infow("lifecycle sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle sweeper stopped")
			return
		case <-ticker.C:
			if err := s.AdvanceTime(ctx, s.clock()); err != nil {
				s.logger.Warn("lifecycle sweep error", zap.Error(err))
			}
		}
	}
}

func (s *LifecycleService) ownedEvent(ctx context.Context, eventID string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEventNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OrganizerID != actor.UserID {
		return nil, appErrors.ErrNotAuthorized
	}
	return event, nil
}

func (s *LifecycleService) reload(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload event")
	}
	return event, nil
}
