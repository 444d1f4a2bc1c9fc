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

// GuestSessionHeader carries the anonymous cart session ID. Clients mint one
// on first use and send it on every cart call until they sign in.
const GuestSessionHeader = "X-Guest-Session"

// CartHandlers exposes the cart endpoints for both guest and signed-in shoppers.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers resolving cart ownership from the
// Firebase identity or the guest session header.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateQuantity)
	r.Delete("/items/{productID}", h.removeItem)
	r.Post("/merge", h.mergeGuestCart)
}

type cartItemPayload struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

type cartPayload struct {
	Items     []cartItemPayload `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  int64             `json:"subtotal"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}
	return cartPayload{
		Items:     items,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
	}
}

// cartOwner resolves who the request operates for: the Firebase identity when
// present, otherwise the guest session named in the header.
func cartOwner(r *http.Request) services.CartOwner {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		return services.CartOwner{Identity: services.Identity{UserID: identity.UID}}
	}
	return services.CartOwner{SessionID: strings.TrimSpace(r.Header.Get(GuestSessionHeader))}
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.GetCart(ctx, cartOwner(r))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

type addItemRequest struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.AddItem(ctx, cartOwner(r), services.CartItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Image:     req.Image,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, cartOwner(r), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, cartOwner(r), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.ClearCart(ctx, cartOwner(r))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

// mergeGuestCart folds the guest session cart into the signed-in user's cart.
// Clients call it right after login and then drop the guest session header.
func (h *CartHandlers) mergeGuestCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	cart, err := h.carts.MergeGuestCart(ctx, identity.UID, strings.TrimSpace(r.Header.Get(GuestSessionHeader)))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart request is invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart was modified concurrently", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
