package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gearstore/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderNotFound indicates the order does not exist or belongs to another user.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotCancellable indicates the order has progressed past the point of cancellation.
var ErrOrderNotCancellable = errors.New("order service: not cancellable")

// ErrOrderUnavailable indicates a backend failure.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// OrderServiceDeps wires the order repository and ambient dependencies.
type OrderServiceDeps struct {
	Repository repositories.OrderRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type orderService struct {
	repo   repositories.OrderRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrOrderInvalidInput
	}

	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// GetOrder fetches one order, scoped to its owner.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if order.UserID != userID {
		// Ownership mismatch looks identical to a missing order.
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder transitions a pending order to cancelled. The check and the
// status write happen in a single repository call so a concurrent status
// change cannot slip between them.
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.CancelPending(ctx, userID, orderID, s.now())
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderID": order.ID,
		"userID":  userID,
	})
	return order, nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderNotCancellable
		}
	}
	return ErrOrderUnavailable
}
