package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	firestorev1 "cloud.google.com/go/firestore"

	"github.com/gearstore/api/internal/domain"
	pfirestore "github.com/gearstore/api/internal/platform/firestore"
)

const orderCollection = "orders"

type orderDocument struct {
	UserID        string             `firestore:"userId"`
	Items         []cartItemDocument `firestore:"items"`
	Subtotal      int64              `firestore:"subtotal"`
	Discount      int64              `firestore:"discount"`
	Total         int64              `firestore:"total"`
	CouponCode    string             `firestore:"coupon,omitempty"`
	Status        string             `firestore:"status"`
	PaymentStatus string             `firestore:"paymentStatus"`
	Shipping      orderContactDoc    `firestore:"shipping"`
	CreatedAt     time.Time          `firestore:"createdAt"`
	UpdatedAt     time.Time          `firestore:"updatedAt"`
}

type orderContactDoc struct {
	Name       string `firestore:"name"`
	Email      string `firestore:"email"`
	Line1      string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

// OrderRepository persists placed orders within Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
	}, nil
}

// Insert writes a new order document keyed by the order ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	_, err := r.base.Set(ctx, orderID, orderToDocument(order))
	return err
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestorev1.Query) firestorev1.Query {
		return query.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	// Ordered client side to avoid requiring a composite index on (userId, createdAt).
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// CancelPending atomically transitions a pending order owned by userID to
// cancelled. The read and the status write run in one transaction so a
// concurrent fulfilment update cannot race the cancellation.
func (r *OrderRepository) CancelPending(ctx context.Context, userID, orderID string, cancelledAt time.Time) (domain.Order, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return domain.Order{}, errors.New("order repository: user id and order id are required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var cancelled domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestorev1.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		if doc.UserID != userID {
			// Ownership mismatch looks identical to a missing order.
			return pfirestore.NewNotFound("orders.cancel", errors.New("order owned by another user"))
		}
		if doc.Status != string(domain.OrderStatusPending) {
			return pfirestore.NewConflict("orders.cancel", fmt.Errorf("order status is %s", doc.Status))
		}
		doc.Status = string(domain.OrderStatusCancelled)
		doc.UpdatedAt = cancelledAt.UTC()
		if err := tx.Update(ref, []firestorev1.Update{
			{Path: "status", Value: doc.Status},
			{Path: "updatedAt", Value: doc.UpdatedAt},
		}); err != nil {
			return err
		}
		cancelled = orderFromDocument(snapshot.Ref.ID, doc)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return cancelled, nil
}

func orderToDocument(order domain.Order) orderDocument {
	return orderDocument{
		UserID:        strings.TrimSpace(order.UserID),
		Items:         cartItemDocuments(order.Items),
		Subtotal:      order.Totals.Subtotal,
		Discount:      order.Totals.Discount,
		Total:         order.Totals.Total,
		CouponCode:    strings.TrimSpace(order.CouponCode),
		Status:        string(order.Status),
		PaymentStatus: order.PaymentStatus,
		Shipping: orderContactDoc{
			Name:       order.Shipping.Name,
			Email:      order.Shipping.Email,
			Line1:      order.Shipping.Line1,
			City:       order.Shipping.City,
			PostalCode: order.Shipping.PostalCode,
			Country:    order.Shipping.Country,
		},
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}

	return domain.Order{
		ID:     id,
		UserID: doc.UserID,
		Items:  items,
		Totals: domain.OrderTotals{
			Subtotal: doc.Subtotal,
			Discount: doc.Discount,
			Total:    doc.Total,
		},
		CouponCode:    doc.CouponCode,
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: doc.PaymentStatus,
		Shipping: domain.OrderContact{
			Name:       doc.Shipping.Name,
			Email:      doc.Shipping.Email,
			Line1:      doc.Shipping.Line1,
			City:       doc.Shipping.City,
			PostalCode: doc.Shipping.PostalCode,
			Country:    doc.Shipping.Country,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
