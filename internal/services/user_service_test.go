package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gearstore/api/internal/domain"
)

type stubUserRepository struct {
	profiles map[string]domain.UserProfile
	getErr   error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{profiles: make(map[string]domain.UserProfile)}
}

func (r *stubUserRepository) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	if r.getErr != nil {
		return domain.UserProfile{}, r.getErr
	}
	profile, ok := r.profiles[userID]
	if !ok {
		return domain.UserProfile{}, &stubRepoError{notFound: true}
	}
	return profile, nil
}

func (r *stubUserRepository) UpsertProfile(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	r.profiles[profile.UID] = profile
	return profile, nil
}

func newTestUserService(t *testing.T) (UserService, *stubUserRepository) {
	t.Helper()
	repo := newStubUserRepository()
	svc, err := NewUserService(UserServiceDeps{Repository: repo, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewUserService returned error: %v", err)
	}
	return svc, repo
}

func TestGetProfileNotFound(t *testing.T) {
	svc, _ := newTestUserService(t)
	if _, err := svc.GetProfile(context.Background(), "user-1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfileStripsMarkup(t *testing.T) {
	svc, repo := newTestUserService(t)

	profile, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UserID:      "user-1",
		DisplayName: `<script>alert("x")</script>Sam`,
		Phone:       "<b>+44 113 496 0000</b>",
		Addresses: []Address{{
			Recipient: "Sam <img src=x onerror=alert(1)> Carter",
			Line1:     "12 Mechanical Row",
			City:      "Leeds",
		}},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	if profile.DisplayName != "Sam" {
		t.Fatalf("expected script tags stripped, got %q", profile.DisplayName)
	}
	if strings.Contains(profile.Phone, "<") {
		t.Fatalf("expected markup stripped from phone, got %q", profile.Phone)
	}
	if strings.Contains(profile.Addresses[0].Recipient, "<") {
		t.Fatalf("expected markup stripped from recipient, got %q", profile.Addresses[0].Recipient)
	}

	if _, ok := repo.profiles["user-1"]; !ok {
		t.Fatalf("expected profile persisted")
	}
}

func TestUpdateProfilePreservesEmailAndCreatedAt(t *testing.T) {
	svc, repo := newTestUserService(t)
	created := fixedClock().AddDate(-1, 0, 0)
	repo.profiles["user-1"] = domain.UserProfile{
		UID:       "user-1",
		Email:     "sam@example.com",
		CreatedAt: created,
	}

	profile, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UserID:      "user-1",
		DisplayName: "Sam Carter",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	// Email comes from the identity provider; clients cannot rewrite it here.
	if profile.Email != "sam@example.com" {
		t.Fatalf("expected email preserved, got %q", profile.Email)
	}
	if !profile.CreatedAt.Equal(created) {
		t.Fatalf("expected CreatedAt preserved, got %v", profile.CreatedAt)
	}
	if !profile.UpdatedAt.Equal(fixedClock()) {
		t.Fatalf("expected UpdatedAt from clock, got %v", profile.UpdatedAt)
	}
}

func TestUpdateProfileRejectsTooManyAddresses(t *testing.T) {
	svc, _ := newTestUserService(t)
	addresses := make([]Address, 11)
	_, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UserID:    "user-1",
		Addresses: addresses,
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUpdateProfileBackendFailure(t *testing.T) {
	svc, repo := newTestUserService(t)
	repo.getErr = &stubRepoError{unavailable: true}

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{UserID: "user-1"})
	if !errors.Is(err, ErrUserUnavailable) {
		t.Fatalf("expected ErrUserUnavailable, got %v", err)
	}
}
