package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/events-api/internal/dto"
	"github.com/campushub/events-api/internal/models"
	appErrors "github.com/campushub/events-api/pkg/errors"
)

type stubUserStore struct {
	created   []*models.User
	byID      map[string]*models.User
	setActive map[string]bool
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{byID: map[string]*models.User{}, setActive: map[string]bool{}}
}

func (s *stubUserStore) Create(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	s.created = append(s.created, user)
	s.byID[user.ID] = user
	return nil
}

func (s *stubUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubUserStore) List(_ context.Context, _ models.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, user := range s.byID {
		out = append(out, *user)
	}
	return out, nil
}

func (s *stubUserStore) SetActive(_ context.Context, id string, active bool) error {
	s.setActive[id] = active
	if user, ok := s.byID[id]; ok {
		user.Active = active
	}
	return nil
}

func TestCreateOrganizerHashesPassword(t *testing.T) {
	store := newStubUserStore()
	svc := NewUserService(store, nil, nil)

	user, err := svc.CreateOrganizer(context.Background(), dto.CreateOrganizerRequest{
		Email:    "Org@Example.com",
		FullName: "Org Anizer",
		Password: "super secret",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleOrganizer, user.Role)
	require.Equal(t, "org@example.com", user.Email)
	require.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("super secret")))
}

func TestSignupCreatesParticipantWithCohort(t *testing.T) {
	store := newStubUserStore()
	svc := NewUserService(store, nil, nil)

	cohort := "2024"
	user, err := svc.Signup(context.Background(), dto.SignupRequest{
		Email:    "ada@example.com",
		FullName: "Ada",
		Password: "long enough",
		Cohort:   &cohort,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleParticipant, user.Role)
	require.Equal(t, "2024", *user.Cohort)
}

func TestSignupValidation(t *testing.T) {
	store := newStubUserStore()
	svc := NewUserService(store, nil, nil)

	_, err := svc.Signup(context.Background(), dto.SignupRequest{
		Email:    "not-an-email",
		FullName: "Ada",
		Password: "long enough",
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Empty(t, store.created)
}

func TestSetActiveTogglesAccount(t *testing.T) {
	store := newStubUserStore()
	store.byID["u-1"] = &models.User{ID: "u-1", Active: true}
	svc := NewUserService(store, nil, nil)

	user, err := svc.SetActive(context.Background(), "u-1", false)
	require.NoError(t, err)
	require.False(t, user.Active)

	_, err = svc.SetActive(context.Background(), "missing", false)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
