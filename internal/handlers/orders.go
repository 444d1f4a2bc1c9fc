package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gearstore/api/internal/platform/auth"
	"github.com/gearstore/api/internal/platform/httpx"
	"github.com/gearstore/api/internal/services"
)

// OrderHandlers exposes the signed-in shopper's order history.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs handlers enforcing authentication before order access.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(ctx, identity.UID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"orders": payload})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, identity.UID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, identity.UID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

// requireIdentity resolves the authenticated identity or writes the
// appropriate error response and reports failure.
func requireIdentity(ctx context.Context, w http.ResponseWriter, serviceReady bool) (*auth.Identity, bool) {
	if !serviceReady {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order request is invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", "order can no longer be cancelled", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "orders are temporarily unavailable", http.StatusServiceUnavailable))
	}
}
