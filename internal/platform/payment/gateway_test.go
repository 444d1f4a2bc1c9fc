package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gearstore/api/internal/services"
)

func TestChargeApprovesAfterDelay(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	gateway := NewGateway("test-key",
		WithSettlementDelay(0),
		WithClock(func() time.Time { return fixed }),
	)

	result, err := gateway.Charge(context.Background(), services.ChargeCommand{
		OrderID: "user-1_1741944413000",
		UserID:  "user-1",
		Amount:  12999,
	})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if result.Status != StatusPaid {
		t.Fatalf("expected status %q, got %q", StatusPaid, result.Status)
	}
	if !result.ChargedAt.Equal(fixed) {
		t.Fatalf("expected charge time %v, got %v", fixed, result.ChargedAt)
	}
}

func TestChargeRejectsInvalidCommands(t *testing.T) {
	gateway := NewGateway("test-key", WithSettlementDelay(0))
	tests := []services.ChargeCommand{
		{UserID: "user-1", Amount: 100},
		{OrderID: "o-1", Amount: 100},
		{OrderID: "o-1", UserID: "user-1", Amount: 0},
		{OrderID: "o-1", UserID: "user-1", Amount: -5},
	}
	for _, cmd := range tests {
		if _, err := gateway.Charge(context.Background(), cmd); err == nil {
			t.Fatalf("expected error for %+v", cmd)
		}
	}
}

func TestChargeHonoursContextCancellation(t *testing.T) {
	gateway := NewGateway("test-key", WithSettlementDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Charge(ctx, services.ChargeCommand{OrderID: "o-1", UserID: "user-1", Amount: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
