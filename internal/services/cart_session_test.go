package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gearstore/api/internal/domain"
	"github.com/gearstore/api/internal/repositories/localstore"
)

func newTestCartSession(t *testing.T) (*CartSession, *stubCartRepository, *localstore.MemoryStore) {
	t.Helper()
	repo := newStubCartRepository()
	guests := localstore.NewMemoryStore()
	session, err := NewCartSession(CartSessionDeps{
		Repository: repo,
		GuestStore: guests,
		Clock:      fixedClock,
		SessionID:  "session-test",
	})
	if err != nil {
		t.Fatalf("NewCartSession returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = session.Close(ctx)
	})
	return session, repo, guests
}

func TestCartSessionStartsUninitialized(t *testing.T) {
	session, _, _ := newTestCartSession(t)
	if session.State() != CartStateUninitialized {
		t.Fatalf("expected Uninitialized, got %v", session.State())
	}
}

func TestCartSessionRejectsMutationsBeforeReady(t *testing.T) {
	session, _, _ := newTestCartSession(t)
	_, err := session.AddItem(context.Background(), keyboard(1))
	if !errors.Is(err, ErrCartNotReady) {
		t.Fatalf("expected ErrCartNotReady, got %v", err)
	}
}

func TestCartSessionGuestFlow(t *testing.T) {
	session, _, guests := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity guest: %v", err)
	}
	if session.State() != CartStateReady {
		t.Fatalf("expected Ready after identity load, got %v", session.State())
	}

	snapshot, err := session.AddItem(ctx, keyboard(2))
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if snapshot.ItemCount != 2 {
		t.Fatalf("expected optimistic item count 2, got %d", snapshot.ItemCount)
	}

	if err := session.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	stored, err := guests.ReadGuestCart(ctx, "session-test")
	if err != nil {
		t.Fatalf("ReadGuestCart: %v", err)
	}
	if stored.ItemCount() != 2 {
		t.Fatalf("expected persisted count 2, got %d", stored.ItemCount())
	}
	if err := session.LastWriteError(); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
}

func TestCartSessionLoginMergesGuestCart(t *testing.T) {
	session, repo, guests := newTestCartSession(t)
	ctx := context.Background()

	repo.carts["user-1"] = domain.CartRecord{
		UserID: "user-1",
		Items:  []domain.CartItem{keyboard(1)},
	}

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity guest: %v", err)
	}
	if _, err := session.AddItem(ctx, keyboard(2)); err != nil {
		t.Fatalf("AddItem keyboard: %v", err)
	}
	if _, err := session.AddItem(ctx, mouse(1)); err != nil {
		t.Fatalf("AddItem mouse: %v", err)
	}

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("SetIdentity login: %v", err)
	}

	snapshot := session.Snapshot()
	if snapshot.State != CartStateReady {
		t.Fatalf("expected Ready after login, got %v", snapshot.State)
	}
	idx := snapshot.Cart.IndexOf("kb-75")
	if idx < 0 || snapshot.Cart.Items[idx].Quantity != 3 {
		t.Fatalf("expected keyboard quantity 3 after merge, got %+v", snapshot.Cart.Items)
	}
	if snapshot.Cart.IndexOf("m-900") < 0 {
		t.Fatalf("expected guest mouse line after merge, got %+v", snapshot.Cart.Items)
	}

	// The guest cart was consumed and the merge persisted remotely.
	if guests.Len() != 0 {
		t.Fatalf("expected guest cart consumed, %d remain", guests.Len())
	}
	record, ok := repo.carts["user-1"]
	if !ok {
		t.Fatalf("expected remote cart persisted")
	}
	merged := domain.Cart{Items: record.Items}
	if merged.ItemCount() != 4 {
		t.Fatalf("expected remote item count 4, got %d", merged.ItemCount())
	}
}

func TestCartSessionLogoutPreservesRemoteCart(t *testing.T) {
	session, repo, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("SetIdentity login: %v", err)
	}
	if _, err := session.AddItem(ctx, keyboard(2)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity logout: %v", err)
	}

	// Remote data survives logout untouched.
	record, ok := repo.carts["user-1"]
	if !ok {
		t.Fatalf("expected remote cart to remain after logout")
	}
	remote := domain.Cart{Items: record.Items}
	if remote.ItemCount() != 2 {
		t.Fatalf("expected remote item count 2, got %d", remote.ItemCount())
	}

	// The session itself shows the (empty) guest cart.
	if count := session.ItemCount(); count != 0 {
		t.Fatalf("expected empty guest view after logout, got %d", count)
	}
}

func TestCartSessionSameIdentityIsNoOp(t *testing.T) {
	session, repo, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("first SetIdentity: %v", err)
	}
	if _, err := session.AddItem(ctx, keyboard(1)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := session.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	writes := repo.upsertCalls

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("second SetIdentity: %v", err)
	}
	if session.State() != CartStateReady {
		t.Fatalf("expected session to stay Ready, got %v", session.State())
	}
	if repo.upsertCalls != writes {
		t.Fatalf("expected no extra writes, got %d -> %d", writes, repo.upsertCalls)
	}
}

func TestCartSessionFlushOrdersWrites(t *testing.T) {
	session, _, guests := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}

	if _, err := session.AddItem(ctx, keyboard(1)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := session.UpdateQuantity(ctx, "kb-75", 7); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if _, err := session.RemoveItem(ctx, "kb-75"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := session.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stored, err := guests.ReadGuestCart(ctx, "session-test")
	if err != nil {
		t.Fatalf("ReadGuestCart: %v", err)
	}
	if !stored.IsEmpty() {
		t.Fatalf("expected last write to win, got %+v", stored.Items)
	}
}

func TestCartSessionUpdateQuantityZeroRemoves(t *testing.T) {
	session, _, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if _, err := session.AddItem(ctx, keyboard(2)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	snapshot, err := session.UpdateQuantity(ctx, "kb-75", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if snapshot.Cart.IndexOf("kb-75") != -1 {
		t.Fatalf("expected line removed, got %+v", snapshot.Cart.Items)
	}
}

func TestCartSessionNotifiesSubscribers(t *testing.T) {
	session, _, _ := newTestCartSession(t)
	ctx := context.Background()

	updates, cancel := session.Subscribe()
	defer cancel()

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if _, err := session.AddItem(ctx, mouse(2)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	var sawReadyWithItems bool
	deadline := time.After(time.Second)
	for !sawReadyWithItems {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				t.Fatalf("subscription closed before the expected snapshot")
			}
			if snapshot.State == CartStateReady && snapshot.ItemCount == 2 {
				sawReadyWithItems = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a Ready snapshot with two items")
		}
	}
}

func TestCartSessionEmitsItemAddedNotification(t *testing.T) {
	session, _, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Anonymous()); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if _, err := session.AddItem(ctx, keyboard(1)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	select {
	case note := <-session.Notifications():
		if note.Kind != CartNotificationItemAdded {
			t.Fatalf("expected item-added notification, got %+v", note)
		}
		if note.Message != "Tenkeyless Keyboard added to cart" {
			t.Fatalf("unexpected message %q", note.Message)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the item-added notification")
	}
}

func TestCartSessionEmitsWriteFailedNotification(t *testing.T) {
	session, repo, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	repo.upsertErr = &stubRepoError{unavailable: true}

	if _, err := session.AddItem(ctx, keyboard(1)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := session.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case note := <-session.Notifications():
			if note.Kind != CartNotificationWriteFailed {
				continue
			}
			if note.Err == nil {
				t.Fatalf("expected notification to carry the persist error")
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for the write-failed notification")
		}
	}
}

func TestCartSessionRecordsPersistFailures(t *testing.T) {
	session, repo, _ := newTestCartSession(t)
	ctx := context.Background()

	if err := session.SetIdentity(ctx, domain.Authenticated("user-1")); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	repo.upsertErr = &stubRepoError{unavailable: true}

	snapshot, err := session.AddItem(ctx, keyboard(1))
	if err != nil {
		t.Fatalf("AddItem should apply optimistically: %v", err)
	}
	if snapshot.ItemCount != 1 {
		t.Fatalf("expected optimistic count 1, got %d", snapshot.ItemCount)
	}

	if err := session.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if session.LastWriteError() == nil {
		t.Fatalf("expected LastWriteError after a failed persist")
	}
}

func TestCartSessionClosedRejectsUse(t *testing.T) {
	repo := newStubCartRepository()
	session, err := NewCartSession(CartSessionDeps{
		Repository: repo,
		GuestStore: localstore.NewMemoryStore(),
		Clock:      fixedClock,
	})
	if err != nil {
		t.Fatalf("NewCartSession: %v", err)
	}

	ctx := context.Background()
	if err := session.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.SetIdentity(ctx, domain.Anonymous()); !errors.Is(err, ErrCartSessionClosed) {
		t.Fatalf("expected ErrCartSessionClosed, got %v", err)
	}
}
