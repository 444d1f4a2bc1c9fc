package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartGuestStoreRequired = errors.New("cart service: guest store is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// CartServiceDeps wires persistence and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	GuestStore repositories.GuestCartStore
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo   repositories.CartRepository
	guests repositories.GuestCartStore
	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	// userLocks serialises remote writes per user so concurrent mutations
	// cannot interleave reads and writes of the same cart document.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.GuestStore == nil {
		return nil, errCartGuestStoreRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:      deps.Repository,
		guests:    deps.GuestStore,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}, nil
}

// GetCart loads the owner's cart. Owners without a stored cart get an empty one.
func (s *cartService) GetCart(ctx context.Context, owner CartOwner) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	return s.loadCart(ctx, owner)
}

// AddItem appends the item or, when the product is already in the cart, sums
// the quantities into the existing line.
func (s *cartService) AddItem(ctx context.Context, owner CartOwner, item CartItem) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if strings.TrimSpace(item.ProductID) == "" || item.UnitPrice < 0 {
		return Cart{}, ErrCartInvalidInput
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	return s.mutate(ctx, owner, "cart.item_added", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(item.ProductID)
		if idx < 0 {
			cart.Items = append(cart.Items, item)
			return cart, nil
		}
		cart.Items[idx].Quantity += item.Quantity
		return cart, nil
	})
}

// UpdateQuantity sets the line quantity exactly. A zero or negative quantity
// removes the line; quantity zero is never stored.
func (s *cartService) UpdateQuantity(ctx context.Context, owner CartOwner, productID string, quantity int) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if strings.TrimSpace(productID) == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, owner, productID)
	}

	return s.mutate(ctx, owner, "cart.quantity_updated", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(productID)
		if idx < 0 {
			return Cart{}, ErrCartNotFound
		}
		cart.Items[idx].Quantity = quantity
		return cart, nil
	})
}

// RemoveItem drops the whole line for the product regardless of quantity.
func (s *cartService) RemoveItem(ctx context.Context, owner CartOwner, productID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if strings.TrimSpace(productID) == "" {
		return Cart{}, ErrCartInvalidInput
	}

	return s.mutate(ctx, owner, "cart.item_removed", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(productID)
		if idx < 0 {
			return cart, nil
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return cart, nil
	})
}

// ClearCart empties the owner's cart. A guest cart is rewritten empty in the
// local store; an authenticated clear deletes the remote document so no empty
// record lingers in the collection.
func (s *cartService) ClearCart(ctx context.Context, owner CartOwner) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if owner.Identity.IsAnonymous() {
		return s.mutate(ctx, owner, "cart.cleared", func(Cart) (Cart, error) {
			return Cart{}, nil
		})
	}

	userID := owner.Identity.UserID
	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.repo.DeleteCart(ctx, userID); err != nil && !isRepoNotFound(err) {
		return Cart{}, s.translateRepoError(err)
	}
	s.logger(ctx, "cart.cleared", map[string]any{
		"userID":    userID,
		"itemCount": 0,
	})
	return Cart{}, nil
}

// MergeGuestCart folds the guest cart into the user's remote cart at login.
// Quantities for matching products are summed, other guest lines are
// appended, and the guest cart is deleted only after the merged cart has been
// persisted remotely. An empty or missing guest cart leaves the remote cart
// untouched.
func (s *cartService) MergeGuestCart(ctx context.Context, userID, sessionID string) (Cart, error) {
	if s == nil || s.repo == nil || s.guests == nil {
		return Cart{}, ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	sessionID = strings.TrimSpace(sessionID)

	unlock := s.lockUser(userID)
	defer unlock()

	remote, err := s.loadRemoteCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	if sessionID == "" {
		return remote, nil
	}

	guest, err := s.guests.ReadGuestCart(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return remote, nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	if guest.IsEmpty() {
		// Still consume the stored (empty) cart so the session does not linger.
		_ = s.guests.DeleteGuestCart(ctx, sessionID)
		return remote, nil
	}

	merged := domain.MergeCarts(remote, guest)
	saved, err := s.repo.UpsertCart(ctx, domain.CartRecord{
		UserID:    userID,
		Items:     merged.Items,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	if err := s.guests.DeleteGuestCart(ctx, sessionID); err != nil {
		// The merge already persisted; log and carry on rather than failing login.
		s.logger(ctx, "cart.guest_delete_failed", map[string]any{
			"sessionID": sessionID,
			"error":     err.Error(),
		})
	}

	s.logger(ctx, "cart.merged", map[string]any{
		"userID":    userID,
		"sessionID": sessionID,
		"itemCount": len(saved.Items),
	})
	return Cart{Items: saved.Items}, nil
}

func (s *cartService) mutate(ctx context.Context, owner CartOwner, event string, apply func(Cart) (Cart, error)) (Cart, error) {
	if owner.Identity.IsAnonymous() {
		sessionID := strings.TrimSpace(owner.SessionID)
		if sessionID == "" {
			return Cart{}, ErrCartInvalidInput
		}

		cart, err := s.loadGuestCart(ctx, sessionID)
		if err != nil {
			return Cart{}, err
		}
		updated, err := apply(cart.Clone())
		if err != nil {
			return Cart{}, err
		}
		if err := s.guests.WriteGuestCart(ctx, sessionID, updated); err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		s.logger(ctx, event, map[string]any{
			"sessionID": sessionID,
			"itemCount": updated.ItemCount(),
		})
		return updated, nil
	}

	userID := owner.Identity.UserID
	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.loadRemoteCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	updated, err := apply(cart.Clone())
	if err != nil {
		return Cart{}, err
	}

	saved, err := s.repo.UpsertCart(ctx, domain.CartRecord{
		UserID:    userID,
		Items:     updated.Items,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, event, map[string]any{
		"userID":    userID,
		"itemCount": updated.ItemCount(),
	})
	return Cart{Items: saved.Items}, nil
}

func (s *cartService) loadCart(ctx context.Context, owner CartOwner) (Cart, error) {
	if owner.Identity.IsAnonymous() {
		sessionID := strings.TrimSpace(owner.SessionID)
		if sessionID == "" {
			return Cart{}, nil
		}
		return s.loadGuestCart(ctx, sessionID)
	}
	return s.loadRemoteCart(ctx, owner.Identity.UserID)
}

func (s *cartService) loadGuestCart(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.guests.ReadGuestCart(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

func (s *cartService) loadRemoteCart(ctx context.Context, userID string) (Cart, error) {
	record, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return Cart{Items: record.Items}, nil
}

func (s *cartService) lockUser(userID string) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
