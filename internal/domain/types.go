package domain

import (
	"strings"
	"time"
)

// Identity is the two-state principal attached to every cart-affecting
// operation: either nobody is signed in, or a Firebase user is.
type Identity struct {
	UserID string
}

// Anonymous returns the signed-out identity.
func Anonymous() Identity { return Identity{} }

// Authenticated returns the identity for the given Firebase UID.
func Authenticated(userID string) Identity {
	return Identity{UserID: strings.TrimSpace(userID)}
}

// IsAnonymous reports whether no user is signed in.
func (i Identity) IsAnonymous() bool { return strings.TrimSpace(i.UserID) == "" }

// Equal reports whether both identities refer to the same principal.
func (i Identity) Equal(other Identity) bool {
	return strings.TrimSpace(i.UserID) == strings.TrimSpace(other.UserID)
}

// CartItem is one product line in a cart. Quantity is always >= 1; a line
// that would reach zero is removed instead of being stored at zero.
type CartItem struct {
	ProductID string
	Name      string
	UnitPrice int64
	Image     string
	Quantity  int
}

// Cart is the ordered, deduplicated-by-product list of line items for one
// session or user.
type Cart struct {
	Items []CartItem
}

// CartRecord is the remote persistence shape: one document per user,
// addressed by the user ID.
type CartRecord struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// ItemCount returns the total quantity across all lines.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			total += item.Quantity
		}
	}
	return total
}

// Subtotal returns sum(unit price * quantity) in minor currency units.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Clone returns a deep copy so callers can hand out snapshots safely.
func (c Cart) Clone() Cart {
	if len(c.Items) == 0 {
		return Cart{Items: []CartItem{}}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// IndexOf returns the position of the line for productID, or -1. Product IDs
// match exactly; IDs differing only in case are distinct products.
func (c Cart) IndexOf(productID string) int {
	target := strings.TrimSpace(productID)
	if target == "" {
		return -1
	}
	for i, item := range c.Items {
		if strings.TrimSpace(item.ProductID) == target {
			return i
		}
	}
	return -1
}

// MergeCarts reconciles a guest cart into a user's remote cart. The remote
// cart is the base; each guest line either sums its quantity into a matching
// line or appends in its original order. Quantities are summed, never
// replaced, so the merge policy lives in exactly one place.
func MergeCarts(remote Cart, guest Cart) Cart {
	merged := remote.Clone()
	for _, guestItem := range guest.Items {
		if guestItem.Quantity <= 0 {
			continue
		}
		if idx := merged.IndexOf(guestItem.ProductID); idx >= 0 {
			merged.Items[idx].Quantity += guestItem.Quantity
			continue
		}
		merged.Items = append(merged.Items, guestItem)
	}
	return merged
}

// Product is a catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       int64
	Image       string
	Featured    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderStatus enumerates the coarse order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderTotals breaks down the amounts captured when the order was placed.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// OrderContact is the shipping contact captured at checkout.
type OrderContact struct {
	Name       string
	Email      string
	Line1      string
	City       string
	PostalCode string
	Country    string
}

// Order is a placed order, immutable apart from status transitions.
type Order struct {
	ID            string
	UserID        string
	Items         []CartItem
	Totals        OrderTotals
	CouponCode    string
	Status        OrderStatus
	PaymentStatus string
	Shipping      OrderContact
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Address is a saved delivery address on a user profile.
type Address struct {
	ID         string
	Recipient  string
	Line1      string
	City       string
	PostalCode string
	Country    string
	Phone      string
}

// UserProfile mirrors the account document kept alongside the Firebase user.
type UserProfile struct {
	UID         string
	DisplayName string
	Email       string
	Phone       string
	Addresses   []Address
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
