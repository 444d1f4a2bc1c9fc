package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gearstore/api/internal/domain"
)

type stubOrderRepository struct {
	orders      map[string]domain.Order
	insertErr   error
	listErr     error
	cancelErr   error
	cancelCalls int
}

func newStubOrderRepository() *stubOrderRepository {
	return &stubOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *stubOrderRepository) Insert(_ context.Context, order domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.orders[order.ID] = order
	return nil
}

func (r *stubOrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true}
	}
	return order, nil
}

func (r *stubOrderRepository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *stubOrderRepository) CancelPending(_ context.Context, userID, orderID string, cancelledAt time.Time) (domain.Order, error) {
	r.cancelCalls++
	if r.cancelErr != nil {
		return domain.Order{}, r.cancelErr
	}
	order, ok := r.orders[orderID]
	if !ok || order.UserID != userID {
		return domain.Order{}, &stubRepoError{notFound: true}
	}
	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, &stubRepoError{conflict: true}
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = cancelledAt
	r.orders[orderID] = order
	return order, nil
}

type stubPayments struct {
	err     error
	charges []ChargeCommand
}

func (p *stubPayments) Charge(_ context.Context, cmd ChargeCommand) (ChargeResult, error) {
	p.charges = append(p.charges, cmd)
	if p.err != nil {
		return ChargeResult{}, p.err
	}
	return ChargeResult{Status: "paid", ChargedAt: fixedClock()}, nil
}

type stubPublisher struct {
	err      error
	messages []OrderPlacedMessage
}

func (p *stubPublisher) PublishOrderPlaced(_ context.Context, message OrderPlacedMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

type checkoutFixture struct {
	service  CheckoutService
	carts    CartService
	cartRepo *stubCartRepository
	orders   *stubOrderRepository
	payments *stubPayments
	events   *stubPublisher
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	carts, cartRepo, _ := newTestCartService(t)
	orders := newStubOrderRepository()
	payments := &stubPayments{}
	events := &stubPublisher{}

	service, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:          carts,
		Orders:         orders,
		Payments:       payments,
		Events:         events,
		Clock:          fixedClock,
		CouponsEnabled: true,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService returned error: %v", err)
	}
	return &checkoutFixture{
		service:  service,
		carts:    carts,
		cartRepo: cartRepo,
		orders:   orders,
		payments: payments,
		events:   events,
	}
}

func (f *checkoutFixture) seedCart(t *testing.T, items ...domain.CartItem) {
	t.Helper()
	f.cartRepo.carts["user-1"] = domain.CartRecord{UserID: "user-1", Items: items}
}

func placeCmd() PlaceOrderCommand {
	return PlaceOrderCommand{
		UserID: "user-1",
		Shipping: OrderContact{
			Name:       "Sam Carter",
			Email:      "sam@example.com",
			Line1:      "12 Mechanical Row",
			City:       "Leeds",
			PostalCode: "LS1 4AP",
			Country:    "GB",
		},
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(2), mouse(1))

	order, err := f.service.PlaceOrder(context.Background(), placeCmd())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	wantSubtotal := int64(2*12999 + 6499)
	if order.Totals.Subtotal != wantSubtotal || order.Totals.Total != wantSubtotal {
		t.Fatalf("unexpected totals %+v", order.Totals)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.PaymentStatus != "paid" {
		t.Fatalf("expected paymentStatus paid, got %q", order.PaymentStatus)
	}

	wantID := "user-1_" + "1741944413000"
	if order.ID != wantID {
		t.Fatalf("expected order ID %q, got %q", wantID, order.ID)
	}
	if !strings.HasPrefix(order.ID, "user-1_") {
		t.Fatalf("order ID must be keyed by user, got %q", order.ID)
	}

	if _, ok := f.orders.orders[order.ID]; !ok {
		t.Fatalf("expected order persisted")
	}
	if len(f.payments.charges) != 1 || f.payments.charges[0].Amount != wantSubtotal {
		t.Fatalf("unexpected charges %+v", f.payments.charges)
	}
}

func TestPlaceOrderClearsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(1))

	if _, err := f.service.PlaceOrder(context.Background(), placeCmd()); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	cart, err := f.carts.GetCart(context.Background(), authOwner("user-1"))
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected cart cleared after checkout, got %+v", cart.Items)
	}
}

func TestPlaceOrderPublishesEvent(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(2))

	order, err := f.service.PlaceOrder(context.Background(), placeCmd())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(f.events.messages) != 1 {
		t.Fatalf("expected one published event, got %d", len(f.events.messages))
	}
	message := f.events.messages[0]
	if message.OrderID != order.ID || message.UserID != "user-1" {
		t.Fatalf("unexpected event %+v", message)
	}
	if message.ItemCount != 2 || message.Total != order.Totals.Total {
		t.Fatalf("unexpected event payload %+v", message)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.service.PlaceOrder(context.Background(), placeCmd())
	if !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
	if len(f.payments.charges) != 0 {
		t.Fatalf("no charge should be attempted for an empty cart")
	}
}

func TestPlaceOrderMissingShipping(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(1))

	cmd := placeCmd()
	cmd.Shipping.Line1 = "  "
	_, err := f.service.PlaceOrder(context.Background(), cmd)
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestPlaceOrderPaymentFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(1))
	f.payments.err = errors.New("card declined")

	_, err := f.service.PlaceOrder(context.Background(), placeCmd())
	if !errors.Is(err, ErrCheckoutPaymentFailed) {
		t.Fatalf("expected ErrCheckoutPaymentFailed, got %v", err)
	}
	if len(f.orders.orders) != 0 {
		t.Fatalf("no order should persist after a failed charge")
	}
}

func TestCouponDiscounts(t *testing.T) {
	tests := []struct {
		name       string
		items      []domain.CartItem
		coupon     string
		wantTotals OrderTotals
		wantErr    error
	}{
		{
			name:       "save10 over threshold",
			items:      []domain.CartItem{keyboard(2)}, // 25998
			coupon:     "SAVE10",
			wantTotals: OrderTotals{Subtotal: 25998, Discount: 2599, Total: 23399},
		},
		{
			name:    "save10 under threshold",
			items:   []domain.CartItem{keyboard(1)}, // 12999
			coupon:  "SAVE10",
			wantErr: ErrCheckoutInvalidCoupon,
		},
		{
			name:       "save20 over threshold",
			items:      []domain.CartItem{keyboard(4)}, // 51996
			coupon:     "save20",                       // codes are case-insensitive
			wantTotals: OrderTotals{Subtotal: 51996, Discount: 10399, Total: 41597},
		},
		{
			name:    "save20 under threshold",
			items:   []domain.CartItem{keyboard(3)}, // 38997
			coupon:  "SAVE20",
			wantErr: ErrCheckoutInvalidCoupon,
		},
		{
			name:    "unknown coupon",
			items:   []domain.CartItem{keyboard(4)},
			coupon:  "SAVE99",
			wantErr: ErrCheckoutInvalidCoupon,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			f.seedCart(t, tc.items...)

			totals, err := f.service.PreviewTotals(context.Background(), "user-1", tc.coupon)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PreviewTotals: %v", err)
			}
			if totals != tc.wantTotals {
				t.Fatalf("expected %+v, got %+v", tc.wantTotals, totals)
			}
		})
	}
}

func TestPlaceOrderRecordsCouponCode(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(t, keyboard(2))

	cmd := placeCmd()
	cmd.CouponCode = "save10"
	order, err := f.service.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.CouponCode != "SAVE10" {
		t.Fatalf("expected stored coupon SAVE10, got %q", order.CouponCode)
	}
	if order.Totals.Discount != 2599 {
		t.Fatalf("expected discount 2599, got %d", order.Totals.Discount)
	}
}

func TestCouponsRejectedWhenDisabled(t *testing.T) {
	carts, cartRepo, _ := newTestCartService(t)
	cartRepo.carts["user-1"] = domain.CartRecord{UserID: "user-1", Items: []domain.CartItem{keyboard(4)}}

	service, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:    carts,
		Orders:   newStubOrderRepository(),
		Payments: &stubPayments{},
		Clock:    fixedClock,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	_, err = service.PreviewTotals(context.Background(), "user-1", "SAVE20")
	if !errors.Is(err, ErrCheckoutInvalidCoupon) {
		t.Fatalf("expected ErrCheckoutInvalidCoupon, got %v", err)
	}
}
