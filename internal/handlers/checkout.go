package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearstore/api/internal/platform/auth"
	"github.com/gearstore/api/internal/platform/httpx"
	"github.com/gearstore/api/internal/services"
)

// CheckoutHandlers turns the signed-in shopper's cart into an order.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers enforcing authentication before checkout.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.placeOrder)
	r.Post("/preview", h.previewTotals)
}

type shippingRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Line1      string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type placeOrderRequest struct {
	CouponCode string          `json:"coupon,omitempty"`
	Shipping   shippingRequest `json:"shipping"`
}

type totalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type orderPayload struct {
	ID            string            `json:"id"`
	Items         []cartItemPayload `json:"items"`
	Totals        totalsPayload     `json:"totals"`
	CouponCode    string            `json:"coupon,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	CreatedAt     string            `json:"createdAt"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]cartItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}
	return orderPayload{
		ID:    order.ID,
		Items: items,
		Totals: totalsPayload{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Total:    order.Totals.Total,
		},
		CouponCode:    order.CouponCode,
		Status:        string(order.Status),
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:     identity.UID,
		CouponCode: req.CouponCode,
		Shipping: services.OrderContact{
			Name:       req.Shipping.Name,
			Email:      req.Shipping.Email,
			Line1:      req.Shipping.Line1,
			City:       req.Shipping.City,
			PostalCode: req.Shipping.PostalCode,
			Country:    req.Shipping.Country,
		},
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildOrderPayload(order))
}

type previewRequest struct {
	CouponCode string `json:"coupon,omitempty"`
}

func (h *CheckoutHandlers) previewTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	totals, err := h.checkout.PreviewTotals(ctx, identity.UID, req.CouponCode)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, totalsPayload{
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Total:    totals.Total,
	})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "checkout request is invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutInvalidCoupon):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_coupon", "coupon is not applicable to this cart", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment could not be processed", http.StatusPaymentRequired))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
