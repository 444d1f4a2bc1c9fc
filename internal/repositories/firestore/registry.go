package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/gearstore/api/internal/platform/firestore"
	"github.com/gearstore/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind a single lifecycle.
type Registry struct {
	provider *pfirestore.Provider

	carts    *CartRepository
	products *ProductRepository
	orders   *OrderRepository
	users    *UserRepository
}

// NewRegistry constructs all Firestore repositories sharing one provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		products: products,
		orders:   orders,
		users:    users,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }
