package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories"
)

type stubProductRepository struct {
	products []domain.Product
	listErr  error
	filters  []repositories.ProductListFilter
}

func (r *stubProductRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	for _, product := range r.products {
		if product.ID == productID {
			return product, nil
		}
	}
	return domain.Product{}, &stubRepoError{notFound: true}
}

func (r *stubProductRepository) List(_ context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	r.filters = append(r.filters, filter)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Product
	for _, product := range r.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

func newTestCatalog(t *testing.T, products ...domain.Product) (CatalogService, *stubProductRepository) {
	t.Helper()
	repo := &stubProductRepository{products: products}
	svc, err := NewCatalogService(CatalogServiceDeps{Repository: repo, DefaultPage: 10})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}
	return svc, repo
}

func gearProducts() []domain.Product {
	return []domain.Product{
		{ID: "kb-75", Name: "Tenkeyless Keyboard", Category: "keyboards", Price: 12999},
		{ID: "kb-60", Name: "Sixty Percent Keyboard", Category: "keyboards", Price: 9999},
		{ID: "m-900", Name: "Wireless Mouse", Category: "mice", Price: 6499},
		{ID: "hp-01", Name: "Kölner Headset", Category: "audio", Price: 18999},
	}
}

func TestListProductsByCategory(t *testing.T) {
	svc, _ := newTestCatalog(t, gearProducts()...)

	products, err := svc.ListProducts(context.Background(), ProductQuery{Category: "keyboards"})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 keyboards, got %+v", products)
	}
}

func TestListProductsSearchFoldsCase(t *testing.T) {
	svc, _ := newTestCatalog(t, gearProducts()...)

	for _, term := range []string{"kölner", "KÖLNER", "köln"} {
		products, err := svc.ListProducts(context.Background(), ProductQuery{Search: term})
		if err != nil {
			t.Fatalf("ListProducts(%q): %v", term, err)
		}
		if len(products) != 1 || products[0].ID != "hp-01" {
			t.Fatalf("ListProducts(%q): expected the headset, got %+v", term, products)
		}
	}
}

func TestListProductsSearchMatchesCategory(t *testing.T) {
	svc, _ := newTestCatalog(t, gearProducts()...)

	products, err := svc.ListProducts(context.Background(), ProductQuery{Search: "MICE"})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 || products[0].ID != "m-900" {
		t.Fatalf("expected the mouse via category match, got %+v", products)
	}
}

func TestListProductsClampsLimit(t *testing.T) {
	svc, repo := newTestCatalog(t, gearProducts()...)

	products, err := svc.ListProducts(context.Background(), ProductQuery{Limit: 500})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 4 {
		t.Fatalf("expected all 4 products, got %d", len(products))
	}
	if got := repo.filters[0].Limit; got != 10 {
		t.Fatalf("expected limit clamped to 10, got %d", got)
	}
}

func TestGetProduct(t *testing.T) {
	svc, _ := newTestCatalog(t, gearProducts()...)

	product, err := svc.GetProduct(context.Background(), "m-900")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Name != "Wireless Mouse" {
		t.Fatalf("unexpected product %+v", product)
	}

	if _, err := svc.GetProduct(context.Background(), "nope"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestListProductsBackendFailure(t *testing.T) {
	svc, repo := newTestCatalog(t)
	repo.listErr = &stubRepoError{unavailable: true}

	if _, err := svc.ListProducts(context.Background(), ProductQuery{}); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}
