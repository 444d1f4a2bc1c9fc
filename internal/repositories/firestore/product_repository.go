package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	firestorev1 "cloud.google.com/go/firestore"

	"github.com/gearstore/api/internal/domain"
	pfirestore "github.com/gearstore/api/internal/platform/firestore"
	"github.com/gearstore/api/internal/repositories"
)

const productCollection = "products"

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Category    string    `firestore:"category,omitempty"`
	Price       int64     `firestore:"price"`
	Image       string    `firestore:"image,omitempty"`
	Featured    bool      `firestore:"featured"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository reads the product catalog from Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection),
	}, nil
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// List returns catalog products, optionally narrowed by category. Search term
// filtering happens in the service layer since Firestore has no substring queries.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestorev1.Query) firestorev1.Query {
		if category := strings.TrimSpace(filter.Category); category != "" {
			query = query.Where("category", "==", category)
		}
		query = query.OrderBy("name", firestorev1.Asc)
		if filter.Limit > 0 && filter.Search == "" {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, productFromDocument(doc.ID, doc.Data))
	}
	return products, nil
}

func productFromDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       doc.Price,
		Image:       doc.Image,
		Featured:    doc.Featured,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
