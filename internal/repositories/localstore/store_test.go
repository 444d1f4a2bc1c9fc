package localstore

import (
	"context"
	"errors"
	"testing"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func sampleCart() domain.Cart {
	return domain.Cart{Items: []domain.CartItem{
		{ProductID: "kb-01", Name: "Mechanical Keyboard", UnitPrice: 12999, Image: "kb.png", Quantity: 2},
		{ProductID: "ms-02", Name: "Wireless Mouse", UnitPrice: 5999, Quantity: 1},
	}}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.WriteGuestCart(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", sampleCart()); err != nil {
		t.Fatalf("WriteGuestCart returned error: %v", err)
	}

	cart, err := store.ReadGuestCart(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err != nil {
		t.Fatalf("ReadGuestCart returned error: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(cart.Items))
	}
	if cart.Items[0].ProductID != "kb-01" || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected first item: %+v", cart.Items[0])
	}
	if cart.Subtotal() != 2*12999+5999 {
		t.Fatalf("unexpected subtotal: %d", cart.Subtotal())
	}
}

func TestStoreOverwriteReplacesCart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.WriteGuestCart(ctx, "session-1", sampleCart()); err != nil {
		t.Fatalf("WriteGuestCart returned error: %v", err)
	}
	replacement := domain.Cart{Items: []domain.CartItem{
		{ProductID: "hs-03", Name: "Gaming Headset", UnitPrice: 8999, Quantity: 1},
	}}
	if err := store.WriteGuestCart(ctx, "session-1", replacement); err != nil {
		t.Fatalf("second WriteGuestCart returned error: %v", err)
	}

	cart, err := store.ReadGuestCart(ctx, "session-1")
	if err != nil {
		t.Fatalf("ReadGuestCart returned error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "hs-03" {
		t.Fatalf("expected replacement cart, got %+v", cart.Items)
	}
}

func TestStoreReadMissingCartIsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ReadGuestCart(context.Background(), "missing-session")
	if err == nil {
		t.Fatalf("expected error for missing cart")
	}

	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %T", err)
	}
	if !repoErr.IsNotFound() {
		t.Fatalf("expected IsNotFound")
	}
	if repoErr.IsUnavailable() {
		t.Fatalf("missing cart must not report unavailable")
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.WriteGuestCart(ctx, "session-2", sampleCart()); err != nil {
		t.Fatalf("WriteGuestCart returned error: %v", err)
	}
	if err := store.DeleteGuestCart(ctx, "session-2"); err != nil {
		t.Fatalf("DeleteGuestCart returned error: %v", err)
	}
	if err := store.DeleteGuestCart(ctx, "session-2"); err != nil {
		t.Fatalf("second DeleteGuestCart returned error: %v", err)
	}

	if _, err := store.ReadGuestCart(ctx, "session-2"); err == nil {
		t.Fatalf("expected missing cart after delete")
	}
}

func TestStoreRejectsUnsafeSessionIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, sessionID := range []string{"", "../escape", "a/b", "id with spaces"} {
		if err := store.WriteGuestCart(ctx, sessionID, sampleCart()); err == nil {
			t.Fatalf("expected error for session id %q", sessionID)
		}
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cart := sampleCart()
	if err := store.WriteGuestCart(ctx, "session-3", cart); err != nil {
		t.Fatalf("WriteGuestCart returned error: %v", err)
	}

	// Mutating the original must not leak into the stored copy.
	cart.Items[0].Quantity = 99

	stored, err := store.ReadGuestCart(ctx, "session-3")
	if err != nil {
		t.Fatalf("ReadGuestCart returned error: %v", err)
	}
	if stored.Items[0].Quantity != 2 {
		t.Fatalf("stored cart mutated, quantity %d", stored.Items[0].Quantity)
	}
}
