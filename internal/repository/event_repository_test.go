package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushub/events-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEventRepositoryCreateDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		OrganizerID:          "org-1",
		Name:                 "Robotics Workshop",
		Type:                 models.EventTypeNormal,
		RegistrationDeadline: time.Now().Add(24 * time.Hour),
		StartDate:            time.Now().Add(48 * time.Hour),
		EndDate:              time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEmpty(t, event.ID)
	require.Equal(t, models.EventStatusDraft, event.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.TransitionStatus(context.Background(), "event-1",
		[]models.EventStatus{models.EventStatusDraft}, models.EventStatusPublished)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.TransitionStatus(context.Background(), "event-1",
		[]models.EventStatus{models.EventStatusDraft}, models.EventStatusPublished)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryAdvanceTime(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status")).
		WithArgs(string(models.EventStatusOngoing), now, string(models.EventStatusPublished)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status")).
		WithArgs(string(models.EventStatusCompleted), now, string(models.EventStatusOngoing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	started, completed, err := repo.AdvanceTime(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 2, started)
	require.EqualValues(t, 1, completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDecrementStockGuardsZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET stock = stock - 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DecrementStock(context.Background(), "event-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET stock = stock - 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.DecrementStock(context.Background(), "event-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
