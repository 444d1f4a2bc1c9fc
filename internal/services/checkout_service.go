package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories"
)

var (
	errCheckoutCartServiceRequired = errors.New("checkout service: cart service is required")
	errCheckoutOrdersRequired      = errors.New("checkout service: order repository is required")
	errCheckoutPaymentRequired     = errors.New("checkout service: payment processor is required")
	errCheckoutClockRequired       = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates checkout was attempted with nothing in the cart.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutInvalidCoupon indicates the coupon code is unknown or the cart does not qualify.
var ErrCheckoutInvalidCoupon = errors.New("checkout service: coupon not applicable")

// ErrCheckoutPaymentFailed indicates the payment processor declined or failed.
var ErrCheckoutPaymentFailed = errors.New("checkout service: payment failed")

// ErrCheckoutUnavailable indicates a backend failure placing the order.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// coupon defines a percentage discount gated on a minimum subtotal.
type coupon struct {
	percent     int64
	minSubtotal int64
}

// Coupon codes and their qualifying subtotals in minor currency units.
var coupons = map[string]coupon{
	"SAVE10": {percent: 10, minSubtotal: 25000},
	"SAVE20": {percent: 20, minSubtotal: 50000},
}

// CheckoutServiceDeps wires cart access, persistence, payment, and events.
type CheckoutServiceDeps struct {
	Carts          CartService
	Orders         repositories.OrderRepository
	Payments       PaymentProcessor
	Events         OrderEventPublisher
	Clock          func() time.Time
	Logger         func(context.Context, string, map[string]any)
	CouponsEnabled bool
}

type checkoutService struct {
	carts          CartService
	orders         repositories.OrderRepository
	payments       PaymentProcessor
	events         OrderEventPublisher
	now            func() time.Time
	logger         func(context.Context, string, map[string]any)
	couponsEnabled bool
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartServiceRequired
	}
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}
	if deps.Payments == nil {
		return nil, errCheckoutPaymentRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:          deps.Carts,
		orders:         deps.Orders,
		payments:       deps.Payments,
		events:         deps.Events,
		now:            func() time.Time { return deps.Clock().UTC() },
		logger:         logger,
		couponsEnabled: deps.CouponsEnabled,
	}, nil
}

// PreviewTotals computes the order totals for the user's current cart without
// placing the order.
func (s *checkoutService) PreviewTotals(ctx context.Context, userID, couponCode string) (OrderTotals, error) {
	if s == nil || s.carts == nil {
		return OrderTotals{}, ErrCheckoutUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return OrderTotals{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.GetCart(ctx, CartOwner{Identity: domain.Authenticated(userID)})
	if err != nil {
		return OrderTotals{}, ErrCheckoutUnavailable
	}
	return s.totals(cart, couponCode)
}

// PlaceOrder turns the user's cart into a persisted order: totals are
// computed, the payment processor settles the amount, the order document is
// written, the cart is cleared, and an order placed event is published.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if s == nil || s.carts == nil || s.orders == nil || s.payments == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}
	if strings.TrimSpace(cmd.Shipping.Name) == "" || strings.TrimSpace(cmd.Shipping.Line1) == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	owner := CartOwner{Identity: domain.Authenticated(userID)}
	cart, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return Order{}, ErrCheckoutUnavailable
	}
	if cart.IsEmpty() {
		return Order{}, ErrCheckoutEmptyCart
	}

	totals, err := s.totals(cart, cmd.CouponCode)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	orderID := fmt.Sprintf("%s_%s", userID, strconv.FormatInt(now.UnixMilli(), 10))

	charge, err := s.payments.Charge(ctx, ChargeCommand{
		OrderID: orderID,
		UserID:  userID,
		Amount:  totals.Total,
	})
	if err != nil {
		s.logger(ctx, "checkout.payment_failed", map[string]any{
			"orderID": orderID,
			"error":   err.Error(),
		})
		return Order{}, ErrCheckoutPaymentFailed
	}

	couponCode := ""
	if totals.Discount > 0 {
		couponCode = strings.ToUpper(strings.TrimSpace(cmd.CouponCode))
	}

	order := Order{
		ID:            orderID,
		UserID:        userID,
		Items:         cart.Clone().Items,
		Totals:        totals,
		CouponCode:    couponCode,
		Status:        domain.OrderStatusPending,
		PaymentStatus: charge.Status,
		Shipping:      cmd.Shipping,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, ErrCheckoutUnavailable
	}

	// The order is the source of truth now; an empty cart follows from it.
	if _, err := s.carts.ClearCart(ctx, owner); err != nil {
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"orderID": orderID,
			"error":   err.Error(),
		})
	}

	if s.events != nil {
		if _, err := s.events.PublishOrderPlaced(ctx, OrderPlacedMessage{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Subtotal:   totals.Subtotal,
			Discount:   totals.Discount,
			Total:      totals.Total,
			ItemCount:  cart.ItemCount(),
			CouponCode: couponCode,
			PlacedAt:   now,
		}); err != nil {
			s.logger(ctx, "checkout.event_publish_failed", map[string]any{
				"orderID": orderID,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderID":   order.ID,
		"userID":    userID,
		"total":     totals.Total,
		"itemCount": cart.ItemCount(),
	})
	return order, nil
}

func (s *checkoutService) totals(cart Cart, couponCode string) (OrderTotals, error) {
	subtotal := cart.Subtotal()
	totals := OrderTotals{Subtotal: subtotal, Total: subtotal}

	code := strings.ToUpper(strings.TrimSpace(couponCode))
	if code == "" {
		return totals, nil
	}
	if !s.couponsEnabled {
		return OrderTotals{}, ErrCheckoutInvalidCoupon
	}

	def, ok := coupons[code]
	if !ok || subtotal < def.minSubtotal {
		return OrderTotals{}, ErrCheckoutInvalidCoupon
	}

	totals.Discount = subtotal * def.percent / 100
	totals.Total = subtotal - totals.Discount
	return totals, nil
}
