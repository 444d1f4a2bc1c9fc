package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories"
)

// CartState tracks the session lifecycle. A session starts Uninitialized,
// moves to Loading while the backing cart is fetched or merged, and accepts
// mutations only once Ready.
type CartState int

const (
	CartStateUninitialized CartState = iota
	CartStateLoading
	CartStateReady
)

// String returns a readable state name for logs.
func (s CartState) String() string {
	switch s {
	case CartStateLoading:
		return "loading"
	case CartStateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// ErrCartNotReady indicates a mutation arrived before the session finished loading.
var ErrCartNotReady = errors.New("cart session: not ready")

// ErrCartSessionClosed indicates the session has been shut down.
var ErrCartSessionClosed = errors.New("cart session: closed")

// CartNotificationKind labels the transient feedback emitted by a session.
type CartNotificationKind int

const (
	// CartNotificationItemAdded acknowledges an add, for "X added to cart" toasts.
	CartNotificationItemAdded CartNotificationKind = iota
	// CartNotificationWriteFailed reports a background persistence failure.
	CartNotificationWriteFailed
)

// CartNotification is transient user-facing feedback. It carries no cart
// state; subscribers read snapshots for that.
type CartNotification struct {
	Kind    CartNotificationKind
	Message string
	Err     error
}

// CartSnapshot is the immutable view handed to subscribers and callers.
type CartSnapshot struct {
	State     CartState
	Identity  Identity
	Cart      Cart
	ItemCount int
	Subtotal  int64
}

// CartSessionDeps wires the stores and ambient dependencies for a session.
type CartSessionDeps struct {
	Repository repositories.CartRepository
	GuestStore repositories.GuestCartStore
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
	// SessionID names the guest cart in local storage. Generated when empty.
	SessionID string
	// QueueSize bounds the pending write queue. Defaults to 64.
	QueueSize int
}

type persistTask struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// CartSession holds one shopper's cart in memory and keeps it synchronised
// with the backing store. Mutations apply optimistically to the in-memory
// cart and are persisted in order by a single writer goroutine, so the
// shopper never waits on the backend and writes for a session never
// interleave.
type CartSession struct {
	repo   repositories.CartRepository
	guests repositories.GuestCartStore
	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	mu          sync.Mutex
	state       CartState
	identity    Identity
	sessionID   string
	cart        Cart
	subscribers map[int]chan CartSnapshot
	nextSubID   int
	closed      bool

	// errMu guards lastWriteErr separately so the writer goroutine never
	// contends with enqueue, which holds mu across the channel send.
	errMu        sync.Mutex
	lastWriteErr error

	notifications chan CartNotification

	tasks chan persistTask
	wg    sync.WaitGroup
}

// NewCartSession constructs a session in the Uninitialized state and starts
// its writer goroutine. Call SetIdentity to load a cart, and Close when done.
func NewCartSession(deps CartSessionDeps) (*CartSession, error) {
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
	sessionID := strings.TrimSpace(deps.SessionID)
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	session := &CartSession{
		repo:          deps.Repository,
		guests:        deps.GuestStore,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		state:         CartStateUninitialized,
		identity:      domain.Anonymous(),
		sessionID:     sessionID,
		subscribers:   make(map[int]chan CartSnapshot),
		notifications: make(chan CartNotification, 16),
		tasks:         make(chan persistTask, queueSize),
	}

	session.wg.Add(1)
	go session.writeLoop()

	return session, nil
}

func (s *CartSession) writeLoop() {
	defer s.wg.Done()
	for task := range s.tasks {
		if task.run != nil {
			task.run(context.Background())
		}
		if task.done != nil {
			close(task.done)
		}
	}
}

// SessionID returns the guest storage key for this session.
func (s *CartSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// State returns the current lifecycle state.
func (s *CartSession) State() CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current cart and state.
func (s *CartSession) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ItemCount returns the total quantity across all lines.
func (s *CartSession) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// Subtotal returns the cart subtotal in minor currency units.
func (s *CartSession) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// LastWriteError reports the most recent asynchronous persistence failure, if any.
func (s *CartSession) LastWriteError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastWriteErr
}

// Notifications exposes transient feedback events. The channel is buffered
// and never blocks mutations; events are dropped when nobody drains it. It
// stays open for the lifetime of the session and simply goes quiet after
// Close.
func (s *CartSession) Notifications() <-chan CartNotification {
	return s.notifications
}

func (s *CartSession) notifyTransient(n CartNotification) {
	select {
	case s.notifications <- n:
	default:
	}
}

// Subscribe registers a listener for cart snapshots. The returned cancel
// function removes the subscription. Slow subscribers drop snapshots rather
// than blocking mutations.
func (s *CartSession) Subscribe() (<-chan CartSnapshot, func()) {
	ch := make(chan CartSnapshot, 8)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// SetIdentity switches the session between guest and authenticated operation.
//
// On login the remote cart is loaded and the guest cart is merged into it:
// quantities for matching products are summed, remaining guest lines are
// appended, and the guest cart is consumed once the merged cart has been
// persisted. On logout the remote cart stays untouched on the backend and the
// session returns to whatever the local guest cart holds. The session is
// Loading for the duration and mutations are rejected with ErrCartNotReady.
func (s *CartSession) SetIdentity(ctx context.Context, identity Identity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrCartSessionClosed
	}
	if s.state != CartStateUninitialized && s.identity.Equal(identity) {
		s.mu.Unlock()
		return nil
	}
	previous := s.identity
	s.state = CartStateLoading
	s.identity = identity
	sessionID := s.sessionID
	s.mu.Unlock()
	s.notify()

	// Drain pending writes so the load below observes every mutation made
	// under the previous identity.
	if err := s.Flush(ctx); err != nil {
		s.mu.Lock()
		s.state = CartStateUninitialized
		s.identity = previous
		s.mu.Unlock()
		s.notify()
		return err
	}

	var (
		cart Cart
		err  error
	)
	switch {
	case identity.IsAnonymous():
		cart, err = s.loadGuest(ctx, sessionID)
	default:
		cart, err = s.loginLoad(ctx, identity.UserID, sessionID)
	}
	if err != nil {
		s.mu.Lock()
		s.state = CartStateUninitialized
		s.identity = previous
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	s.cart = cart
	s.state = CartStateReady
	s.mu.Unlock()
	s.notify()

	s.logger(ctx, "cart_session.identity_changed", map[string]any{
		"anonymous": identity.IsAnonymous(),
		"itemCount": cart.ItemCount(),
	})
	return nil
}

func (s *CartSession) loadGuest(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.guests.ReadGuestCart(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, nil
		}
		return Cart{}, ErrCartUnavailable
	}
	return cart, nil
}

func (s *CartSession) loginLoad(ctx context.Context, userID, sessionID string) (Cart, error) {
	remote := Cart{}
	record, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, ErrCartUnavailable
		}
	} else {
		remote = Cart{Items: record.Items}
	}

	guest, err := s.guests.ReadGuestCart(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return remote, nil
		}
		return Cart{}, ErrCartUnavailable
	}
	if guest.IsEmpty() {
		_ = s.guests.DeleteGuestCart(ctx, sessionID)
		return remote, nil
	}

	merged := domain.MergeCarts(remote, guest)
	if _, err := s.repo.UpsertCart(ctx, domain.CartRecord{
		UserID:    userID,
		Items:     merged.Items,
		UpdatedAt: s.now(),
	}); err != nil {
		return Cart{}, ErrCartUnavailable
	}
	if err := s.guests.DeleteGuestCart(ctx, sessionID); err != nil {
		s.logger(ctx, "cart_session.guest_delete_failed", map[string]any{
			"sessionID": sessionID,
			"error":     err.Error(),
		})
	}
	return merged, nil
}

// AddItem appends the item, summing quantities when the product is already present.
func (s *CartSession) AddItem(ctx context.Context, item CartItem) (CartSnapshot, error) {
	if strings.TrimSpace(item.ProductID) == "" || item.UnitPrice < 0 {
		return CartSnapshot{}, ErrCartInvalidInput
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	snapshot, err := s.apply(ctx, "cart_session.item_added", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(item.ProductID)
		if idx < 0 {
			cart.Items = append(cart.Items, item)
			return cart, nil
		}
		cart.Items[idx].Quantity += item.Quantity
		return cart, nil
	})
	if err == nil {
		s.notifyTransient(CartNotification{
			Kind:    CartNotificationItemAdded,
			Message: item.Name + " added to cart",
		})
	}
	return snapshot, err
}

// UpdateQuantity sets the line quantity exactly. A zero or negative quantity
// removes the line, so a quantity of zero is never stored.
func (s *CartSession) UpdateQuantity(ctx context.Context, productID string, quantity int) (CartSnapshot, error) {
	if strings.TrimSpace(productID) == "" {
		return CartSnapshot{}, ErrCartInvalidInput
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	return s.apply(ctx, "cart_session.quantity_updated", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(productID)
		if idx < 0 {
			return Cart{}, ErrCartNotFound
		}
		cart.Items[idx].Quantity = quantity
		return cart, nil
	})
}

// RemoveItem drops the whole line for the product regardless of quantity.
func (s *CartSession) RemoveItem(ctx context.Context, productID string) (CartSnapshot, error) {
	if strings.TrimSpace(productID) == "" {
		return CartSnapshot{}, ErrCartInvalidInput
	}
	return s.apply(ctx, "cart_session.item_removed", func(cart Cart) (Cart, error) {
		idx := cart.IndexOf(productID)
		if idx < 0 {
			return cart, nil
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return cart, nil
	})
}

// Clear empties the cart.
func (s *CartSession) Clear(ctx context.Context) (CartSnapshot, error) {
	return s.apply(ctx, "cart_session.cleared", func(Cart) (Cart, error) {
		return Cart{}, nil
	})
}

func (s *CartSession) apply(ctx context.Context, event string, mutate func(Cart) (Cart, error)) (CartSnapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return CartSnapshot{}, ErrCartSessionClosed
	}
	if s.state != CartStateReady {
		state := s.state
		s.mu.Unlock()
		s.logger(ctx, "cart_session.mutation_rejected", map[string]any{
			"state": state.String(),
			"event": event,
		})
		return CartSnapshot{}, ErrCartNotReady
	}

	updated, err := mutate(s.cart.Clone())
	if err != nil {
		s.mu.Unlock()
		return CartSnapshot{}, err
	}
	s.cart = updated
	identity := s.identity
	sessionID := s.sessionID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify()

	persisted := updated.Clone()
	s.enqueue(persistTask{run: func(ctx context.Context) {
		var err error
		if identity.IsAnonymous() {
			err = s.guests.WriteGuestCart(ctx, sessionID, persisted)
		} else {
			_, err = s.repo.UpsertCart(ctx, domain.CartRecord{
				UserID:    identity.UserID,
				Items:     persisted.Items,
				UpdatedAt: s.now(),
			})
		}

		s.errMu.Lock()
		s.lastWriteErr = err
		s.errMu.Unlock()

		if err != nil {
			s.notifyTransient(CartNotification{
				Kind:    CartNotificationWriteFailed,
				Message: "cart could not be saved",
				Err:     err,
			})
			s.logger(ctx, "cart_session.persist_failed", map[string]any{
				"event": event,
				"error": err.Error(),
			})
		}
	}})

	s.logger(ctx, event, map[string]any{
		"itemCount": snapshot.ItemCount,
		"subtotal":  snapshot.Subtotal,
	})
	return snapshot, nil
}

// enqueue submits a task to the writer goroutine. Reports false once the
// session is closed, protecting against sends on the closed task channel.
func (s *CartSession) enqueue(task persistTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks <- task
	return true
}

// Flush blocks until all queued writes have been applied or ctx expires.
func (s *CartSession) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !s.enqueue(persistTask{done: done}) {
		return ErrCartSessionClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine after draining pending writes. The session
// rejects further use.
func (s *CartSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()

	close(s.tasks)

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CartSession) snapshotLocked() CartSnapshot {
	return CartSnapshot{
		State:     s.state,
		Identity:  s.identity,
		Cart:      s.cart.Clone(),
		ItemCount: s.cart.ItemCount(),
		Subtotal:  s.cart.Subtotal(),
	}
}

func (s *CartSession) notify() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	channels := make([]chan CartSnapshot, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
