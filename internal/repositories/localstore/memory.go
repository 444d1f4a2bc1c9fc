package localstore

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/gearstore/api/internal/domain"
)

// MemoryStore is an in-memory guest cart store used by tests and local tooling.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]domain.Cart)}
}

// ReadGuestCart returns the stored cart for the session.
func (s *MemoryStore) ReadGuestCart(_ context.Context, sessionID string) (domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[sessionID]
	if !ok {
		return domain.Cart{}, &Error{op: "read", err: os.ErrNotExist, notFound: true}
	}
	return cart.Clone(), nil
}

// WriteGuestCart stores the cart for the session.
func (s *MemoryStore) WriteGuestCart(_ context.Context, sessionID string, cart domain.Cart) error {
	if sessionID == "" {
		return &Error{op: "write", err: errors.New("invalid session id")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = cart.Clone()
	return nil
}

// DeleteGuestCart removes the stored cart.
func (s *MemoryStore) DeleteGuestCart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

// Len reports how many guest carts are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
