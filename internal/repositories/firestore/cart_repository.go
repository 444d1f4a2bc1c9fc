package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gearstore/api/internal/domain"
	pfirestore "github.com/gearstore/api/internal/platform/firestore"
)

const cartCollection = "carts"

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string `firestore:"id"`
	Name      string `firestore:"name"`
	Price     int64  `firestore:"price"`
	Image     string `firestore:"image,omitempty"`
	Quantity  int    `firestore:"quantity"`
}

// CartRepository persists remote carts within Firestore, one document per user.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection),
	}, nil
}

// GetCart fetches the cart owned by userID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.CartRecord, error) {
	if r == nil || r.base == nil {
		return domain.CartRecord{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CartRecord{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.CartRecord{}, err
	}
	return cartRecordFromDocument(doc.ID, doc.Data), nil
}

// UpsertCart writes the full cart document, replacing any previous contents.
func (r *CartRepository) UpsertCart(ctx context.Context, record domain.CartRecord) (domain.CartRecord, error) {
	if r == nil || r.base == nil {
		return domain.CartRecord{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(record.UserID)
	if userID == "" {
		return domain.CartRecord{}, errors.New("cart repository: user id is required")
	}

	updatedAt := record.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	doc := cartDocument{
		UserID:    userID,
		Items:     cartItemDocuments(record.Items),
		UpdatedAt: updatedAt,
	}

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.CartRecord{}, err
	}

	saved := cartRecordFromDocument(userID, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// DeleteCart removes the cart owned by userID. Missing carts are not an error.
func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Delete(ctx, userID)
}

func cartItemDocuments(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}
	return docs
}

func cartRecordFromDocument(id string, doc cartDocument) domain.CartRecord {
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

	userID := strings.TrimSpace(doc.UserID)
	if userID == "" {
		userID = id
	}

	return domain.CartRecord{
		UserID:    userID,
		Items:     items,
		UpdatedAt: doc.UpdatedAt,
	}
}
