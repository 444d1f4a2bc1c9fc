package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/gearstore/api/internal/repositories"
)

var errCatalogRepositoryRequired = errors.New("catalog service: repository is required")

// ErrProductNotFound indicates the requested product does not exist.
var ErrProductNotFound = errors.New("catalog service: product not found")

// ErrCatalogUnavailable indicates the catalog backend cannot be reached.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// CatalogServiceDeps wires the catalog repository and ambient dependencies.
type CatalogServiceDeps struct {
	Repository  repositories.ProductRepository
	DefaultPage int
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo        repositories.ProductRepository
	defaultPage int
	logger      func(context.Context, string, map[string]any)
	fold        cases.Caser
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	defaultPage := deps.DefaultPage
	if defaultPage <= 0 {
		defaultPage = 50
	}

	return &catalogService{
		repo:        deps.Repository,
		defaultPage: defaultPage,
		logger:      logger,
		fold:        cases.Fold(),
	}, nil
}

// ListProducts returns catalog products matching the query. Search terms
// match case-insensitively against product name and category.
func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) ([]Product, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}

	limit := query.Limit
	if limit <= 0 || limit > s.defaultPage {
		limit = s.defaultPage
	}

	started := time.Now()
	products, err := s.repo.List(ctx, repositories.ProductListFilter{
		Category: strings.TrimSpace(query.Category),
		Search:   strings.TrimSpace(query.Search),
		Limit:    limit,
	})
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	if search := strings.TrimSpace(query.Search); search != "" {
		products = s.filterBySearch(products, search)
	}
	if len(products) > limit {
		products = products[:limit]
	}

	s.logger(ctx, "catalog.listed", map[string]any{
		"count":     len(products),
		"category":  query.Category,
		"search":    query.Search,
		"elapsedMS": time.Since(started).Milliseconds(),
	})
	return products, nil
}

// GetProduct fetches a single product.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrProductNotFound
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// filterBySearch keeps products whose name or category contains the term
// under Unicode case folding, so "kÖln" matches "köln" and "KOLN" stays out.
func (s *catalogService) filterBySearch(products []Product, term string) []Product {
	folded := s.fold.String(term)
	out := products[:0]
	for _, product := range products {
		if strings.Contains(s.fold.String(product.Name), folded) ||
			strings.Contains(s.fold.String(product.Category), folded) {
			out = append(out, product)
		}
	}
	return out
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrProductNotFound
	}
	return ErrCatalogUnavailable
}
