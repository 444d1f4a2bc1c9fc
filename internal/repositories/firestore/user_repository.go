package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gearstore/api/internal/domain"
	pfirestore "github.com/gearstore/api/internal/platform/firestore"
)

const userCollection = "users"

type userDocument struct {
	DisplayName string       `firestore:"displayName,omitempty"`
	Email       string       `firestore:"email"`
	Phone       string       `firestore:"phone,omitempty"`
	Addresses   []addressDoc `firestore:"addresses,omitempty"`
	CreatedAt   time.Time    `firestore:"createdAt"`
	UpdatedAt   time.Time    `firestore:"updatedAt"`
}

type addressDoc struct {
	ID         string `firestore:"id"`
	Recipient  string `firestore:"recipient"`
	Line1      string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

// UserRepository persists shopper profiles within Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection),
	}, nil
}

// GetProfile fetches the profile for the given user.
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return profileFromDocument(doc.ID, doc.Data), nil
}

// UpsertProfile writes the profile document keyed by the user ID.
func (r *UserRepository) UpsertProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	userID := strings.TrimSpace(profile.UID)
	if userID == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}

	now := time.Now().UTC()
	createdAt := profile.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := profile.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = now
	}

	addresses := make([]addressDoc, 0, len(profile.Addresses))
	for _, addr := range profile.Addresses {
		addresses = append(addresses, addressDoc{
			ID:         addr.ID,
			Recipient:  addr.Recipient,
			Line1:      addr.Line1,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		})
	}

	doc := userDocument{
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Email:       strings.TrimSpace(profile.Email),
		Phone:       strings.TrimSpace(profile.Phone),
		Addresses:   addresses,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.UserProfile{}, err
	}

	saved := profileFromDocument(userID, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

func profileFromDocument(id string, doc userDocument) domain.UserProfile {
	addresses := make([]domain.Address, 0, len(doc.Addresses))
	for _, addr := range doc.Addresses {
		addresses = append(addresses, domain.Address{
			ID:         addr.ID,
			Recipient:  addr.Recipient,
			Line1:      addr.Line1,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		})
	}

	return domain.UserProfile{
		UID:         id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Addresses:   addresses,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
