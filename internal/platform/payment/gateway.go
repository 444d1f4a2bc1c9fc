// Package payment holds the card-processor integration. The current gateway
// is a stand-in that approves every charge after a configurable settlement
// delay; swapping in a real processor only requires another
// services.PaymentProcessor implementation.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gearstore/api/internal/services"
)

// StatusPaid is the terminal status reported for approved charges.
const StatusPaid = "paid"

var errChargeInvalid = errors.New("payment: invalid charge")

// Gateway simulates a payment processor.
type Gateway struct {
	apiKey string
	delay  time.Duration
	now    func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSettlementDelay overrides how long a charge takes to settle.
func WithSettlementDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.delay = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) {
		if clock != nil {
			g.now = clock
		}
	}
}

// NewGateway builds a Gateway. The API key is accepted for configuration
// parity with a real processor but is not sent anywhere.
func NewGateway(apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		apiKey: strings.TrimSpace(apiKey),
		delay:  1500 * time.Millisecond,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Charge approves the charge after the settlement delay, or fails early when
// the context is cancelled.
func (g *Gateway) Charge(ctx context.Context, cmd services.ChargeCommand) (services.ChargeResult, error) {
	if cmd.OrderID == "" || cmd.UserID == "" || cmd.Amount <= 0 {
		return services.ChargeResult{}, errChargeInvalid
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return services.ChargeResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	return services.ChargeResult{
		Status:    StatusPaid,
		ChargedAt: g.now().UTC(),
	}, nil
}
