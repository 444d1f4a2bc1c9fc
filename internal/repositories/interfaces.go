package repositories

import (
	"context"
	"time"

	"github.com/gearstore/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists the remote cart document for authenticated shoppers.
// Documents are keyed by the owning user ID, one cart per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.CartRecord, error)
	UpsertCart(ctx context.Context, record domain.CartRecord) (domain.CartRecord, error)
	DeleteCart(ctx context.Context, userID string) error
}

// GuestCartStore persists carts for anonymous sessions on local storage.
type GuestCartStore interface {
	ReadGuestCart(ctx context.Context, sessionID string) (domain.Cart, error)
	WriteGuestCart(ctx context.Context, sessionID string, cart domain.Cart) error
	DeleteGuestCart(ctx context.Context, sessionID string) error
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category string
	Search   string
	Limit    int
}

// ProductRepository reads the product catalog.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
}

// OrderRepository persists placed orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// CancelPending atomically transitions a pending order owned by userID
	// to cancelled. A missing or foreign order reports not-found; an order
	// past pending reports a conflict.
	CancelPending(ctx context.Context, userID, orderID string, cancelledAt time.Time) (domain.Order, error)
}

// UserRepository persists shopper profiles.
type UserRepository interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	UpsertProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}
