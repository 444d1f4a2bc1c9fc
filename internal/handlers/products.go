package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearstore/api/internal/platform/httpx"
	"github.com/gearstore/api/internal/services"
)

// ProductHandlers exposes the public catalog endpoints.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs the catalog handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

type productPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Image       string `json:"image,omitempty"`
	Featured    bool   `json:"featured,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Price:       product.Price,
		Image:       product.Image,
		Featured:    product.Featured,
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = product.CreatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := services.ProductQuery{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	products, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, buildProductPayload(product))
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"products": payload})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
