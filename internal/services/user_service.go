package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/gearstore/api/internal/repositories"
)

var (
	errUserRepositoryRequired = errors.New("user service: repository is required")
	errUserClockRequired      = errors.New("user service: clock is required")
)

// ErrUserNotFound indicates the profile does not exist.
var ErrUserNotFound = errors.New("user service: not found")

// ErrUserInvalidInput indicates the caller supplied invalid input.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserUnavailable indicates a backend failure.
var ErrUserUnavailable = errors.New("user service: unavailable")

const (
	maxDisplayNameLength = 80
	maxAddressCount      = 10
)

// UserServiceDeps wires the user repository and ambient dependencies.
type UserServiceDeps struct {
	Repository repositories.UserRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type userService struct {
	repo     repositories.UserRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
	sanitise *bluemonday.Policy
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Repository == nil {
		return nil, errUserRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errUserClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		repo:     deps.Repository,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
		sanitise: bluemonday.StrictPolicy(),
	}, nil
}

// GetProfile fetches the shopper's profile.
func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	if s == nil || s.repo == nil {
		return UserProfile{}, ErrUserUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, ErrUserInvalidInput
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}
	return profile, nil
}

// UpdateProfile writes the editable profile fields. All free-text input is
// stripped of markup before persistence.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	if s == nil || s.repo == nil {
		return UserProfile{}, ErrUserUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	if len(cmd.Addresses) > maxAddressCount {
		return UserProfile{}, ErrUserInvalidInput
	}

	displayName := s.cleanText(cmd.DisplayName, maxDisplayNameLength)

	existing, err := s.repo.GetProfile(ctx, userID)
	if err != nil && !isRepoNotFound(err) {
		return UserProfile{}, s.translateRepoError(err)
	}

	addresses := make([]Address, 0, len(cmd.Addresses))
	for _, addr := range cmd.Addresses {
		addresses = append(addresses, Address{
			ID:         strings.TrimSpace(addr.ID),
			Recipient:  s.cleanText(addr.Recipient, maxDisplayNameLength),
			Line1:      s.cleanText(addr.Line1, 200),
			City:       s.cleanText(addr.City, 80),
			PostalCode: s.cleanText(addr.PostalCode, 20),
			Country:    s.cleanText(addr.Country, 80),
			Phone:      s.cleanText(addr.Phone, 30),
		})
	}

	profile := UserProfile{
		UID:         userID,
		DisplayName: displayName,
		Email:       existing.Email,
		Phone:       s.cleanText(cmd.Phone, 30),
		Addresses:   addresses,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   s.now(),
	}

	saved, err := s.repo.UpsertProfile(ctx, profile)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}

	s.logger(ctx, "user.profile_updated", map[string]any{
		"userID": userID,
	})
	return saved, nil
}

func (s *userService) cleanText(value string, limit int) string {
	value = strings.TrimSpace(s.sanitise.Sanitize(value))
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}

func (s *userService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrUserNotFound
	}
	return ErrUserUnavailable
}
