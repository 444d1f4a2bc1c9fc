package services

import (
	"context"
	"time"

	"github.com/gearstore/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Identity     = domain.Identity
	Cart         = domain.Cart
	CartItem     = domain.CartItem
	CartRecord   = domain.CartRecord
	Product      = domain.Product
	Order        = domain.Order
	OrderStatus  = domain.OrderStatus
	OrderTotals  = domain.OrderTotals
	OrderContact = domain.OrderContact
	Address      = domain.Address
	UserProfile  = domain.UserProfile
)

// CartOwner identifies whose cart a request operates on: the authenticated
// user when Identity is set, the local guest session otherwise.
type CartOwner struct {
	Identity  Identity
	SessionID string
}

// CartService exposes cart reads and mutations for both guest and
// authenticated shoppers, plus the guest-to-user merge performed at login.
type CartService interface {
	GetCart(ctx context.Context, owner CartOwner) (Cart, error)
	AddItem(ctx context.Context, owner CartOwner, item CartItem) (Cart, error)
	UpdateQuantity(ctx context.Context, owner CartOwner, productID string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, owner CartOwner, productID string) (Cart, error)
	ClearCart(ctx context.Context, owner CartOwner) (Cart, error)
	MergeGuestCart(ctx context.Context, userID, sessionID string) (Cart, error)
}

// ProductQuery narrows catalog listings.
type ProductQuery struct {
	Category string
	Search   string
	Limit    int
}

// CatalogService reads the product catalog.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductQuery) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// PlaceOrderCommand captures the checkout submission.
type PlaceOrderCommand struct {
	UserID     string
	CouponCode string
	Shipping   OrderContact
}

// CheckoutService turns the shopper's cart into a placed order.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	PreviewTotals(ctx context.Context, userID, couponCode string) (OrderTotals, error)
}

// OrderService encapsulates order read flows and cancellation.
type OrderService interface {
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (Order, error)
}

// UpdateProfileCommand captures editable profile fields.
type UpdateProfileCommand struct {
	UserID      string
	DisplayName string
	Phone       string
	Addresses   []Address
}

// UserService manages shopper profiles.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
}

// ChargeCommand is submitted to the payment processor at checkout.
type ChargeCommand struct {
	OrderID string
	UserID  string
	Amount  int64
}

// ChargeResult reports the processor outcome.
type ChargeResult struct {
	Status    string
	ChargedAt time.Time
}

// PaymentProcessor settles the order total. The production implementation is
// a placeholder gateway that approves after a configurable delay.
type PaymentProcessor interface {
	Charge(ctx context.Context, cmd ChargeCommand) (ChargeResult, error)
}

// OrderPlacedMessage is published after an order is persisted.
type OrderPlacedMessage struct {
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Subtotal   int64     `json:"subtotalCents"`
	Discount   int64     `json:"discountCents"`
	Total      int64     `json:"totalCents"`
	ItemCount  int       `json:"itemCount"`
	CouponCode string    `json:"couponCode,omitempty"`
	PlacedAt   time.Time `json:"placedAt"`
}

// OrderEventPublisher fans order lifecycle events out to interested consumers.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, message OrderPlacedMessage) (string, error)
}
