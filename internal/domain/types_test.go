package domain

import "testing"

func item(productID string, price int64, quantity int) CartItem {
	return CartItem{ProductID: productID, UnitPrice: price, Quantity: quantity}
}

func TestCartSubtotal(t *testing.T) {
	cart := Cart{Items: []CartItem{
		item("kb-75", 12999, 2),
		item("m-900", 6499, 3),
	}}
	want := int64(2*12999 + 3*6499)
	if got := cart.Subtotal(); got != want {
		t.Fatalf("Subtotal() = %d, want %d", got, want)
	}
}

func TestCartSubtotalSkipsInvalidLines(t *testing.T) {
	cart := Cart{Items: []CartItem{
		item("a", 1000, 1),
		item("b", -500, 2),
		item("c", 1000, 0),
	}}
	if got := cart.Subtotal(); got != 1000 {
		t.Fatalf("Subtotal() = %d, want 1000", got)
	}
}

func TestCartIndexOfMatchesExactID(t *testing.T) {
	cart := Cart{Items: []CartItem{item("KB-75", 12999, 1)}}
	if idx := cart.IndexOf("KB-75"); idx != 0 {
		t.Fatalf("IndexOf = %d, want 0", idx)
	}
	// IDs differing only in case are different products.
	if idx := cart.IndexOf("kb-75"); idx != -1 {
		t.Fatalf("IndexOf lowercased = %d, want -1", idx)
	}
	if idx := cart.IndexOf("missing"); idx != -1 {
		t.Fatalf("IndexOf missing = %d, want -1", idx)
	}
	if idx := cart.IndexOf("  "); idx != -1 {
		t.Fatalf("IndexOf blank = %d, want -1", idx)
	}
}

func TestMergeCartsKeepsCaseDistinctLines(t *testing.T) {
	remote := Cart{Items: []CartItem{item("KB-75", 12999, 1)}}
	guest := Cart{Items: []CartItem{item("kb-75", 12999, 2)}}

	merged := MergeCarts(remote, guest)

	if len(merged.Items) != 2 {
		t.Fatalf("expected two distinct lines, got %+v", merged.Items)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := Cart{Items: []CartItem{item("kb-75", 12999, 1)}}
	clone := original.Clone()
	clone.Items[0].Quantity = 9

	if original.Items[0].Quantity != 1 {
		t.Fatalf("mutating the clone changed the original: %+v", original.Items)
	}
}

func TestMergeCartsSumsMatchingLines(t *testing.T) {
	remote := Cart{Items: []CartItem{item("kb-75", 12999, 2)}}
	guest := Cart{Items: []CartItem{item("kb-75", 12999, 3), item("m-900", 6499, 1)}}

	merged := MergeCarts(remote, guest)

	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 lines, got %+v", merged.Items)
	}
	if merged.Items[0].ProductID != "kb-75" || merged.Items[0].Quantity != 5 {
		t.Fatalf("expected summed keyboard line, got %+v", merged.Items[0])
	}
	if merged.Items[1].ProductID != "m-900" || merged.Items[1].Quantity != 1 {
		t.Fatalf("expected appended mouse line, got %+v", merged.Items[1])
	}
}

func TestMergeCartsEmptyGuestReturnsRemote(t *testing.T) {
	remote := Cart{Items: []CartItem{item("kb-75", 12999, 2)}}
	merged := MergeCarts(remote, Cart{})
	if len(merged.Items) != 1 || merged.Items[0].Quantity != 2 {
		t.Fatalf("expected remote cart unchanged, got %+v", merged.Items)
	}
}

func TestMergeCartsSkipsZeroQuantityGuestLines(t *testing.T) {
	merged := MergeCarts(Cart{}, Cart{Items: []CartItem{item("kb-75", 12999, 0)}})
	if !merged.IsEmpty() {
		t.Fatalf("expected zero-quantity lines dropped, got %+v", merged.Items)
	}
}

func TestMergeCartsDoesNotMutateInputs(t *testing.T) {
	remote := Cart{Items: []CartItem{item("kb-75", 12999, 2)}}
	guest := Cart{Items: []CartItem{item("kb-75", 12999, 3)}}

	_ = MergeCarts(remote, guest)

	if remote.Items[0].Quantity != 2 || guest.Items[0].Quantity != 3 {
		t.Fatalf("inputs were mutated: remote=%+v guest=%+v", remote.Items, guest.Items)
	}
}

func TestIdentity(t *testing.T) {
	if !Anonymous().IsAnonymous() {
		t.Fatalf("Anonymous() should be anonymous")
	}
	if Authenticated("user-1").IsAnonymous() {
		t.Fatalf("Authenticated should not be anonymous")
	}
	if Authenticated("  ").IsAnonymous() != true {
		t.Fatalf("blank UID should collapse to anonymous")
	}
	if !Authenticated("user-1").Equal(Authenticated(" user-1 ")) {
		t.Fatalf("Equal should ignore surrounding whitespace")
	}
	if Authenticated("user-1").Equal(Authenticated("user-2")) {
		t.Fatalf("different users must not be equal")
	}
}
