package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gearstore/api/internal/platform/config"
	"github.com/gearstore/api/internal/platform/observability"
	"github.com/gearstore/api/internal/repositories"
	"github.com/gearstore/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Cart     services.CartService
	Catalog  services.CatalogService
	Checkout services.CheckoutService
	Orders   services.OrderService
	Users    services.UserService
}

// Deps carries the infrastructure a container is built from. Tests can supply
// in-memory registries and stub processors.
type Deps struct {
	Registry   repositories.Registry
	GuestStore repositories.GuestCartStore
	Payments   services.PaymentProcessor
	Events     services.OrderEventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies.
func NewContainer(_ context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.GuestStore == nil {
		return nil, errors.New("guest cart store is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment processor is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceLogger := observability.ServiceLogger(logger)

	var svc Services

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository: deps.Registry.Carts(),
		GuestStore: deps.GuestStore,
		Clock:      clock,
		Logger:     serviceLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository:  deps.Registry.Products(),
		DefaultPage: cfg.Catalog.PageSize,
		Logger:      serviceLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	var events services.OrderEventPublisher
	if cfg.Features.EnableOrderEvents {
		events = deps.Events
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:          cartSvc,
		Orders:         deps.Registry.Orders(),
		Payments:       deps.Payments,
		Events:         events,
		Clock:          clock,
		Logger:         serviceLogger,
		CouponsEnabled: cfg.Features.EnableCoupons,
	})
	if err != nil {
		return nil, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: deps.Registry.Orders(),
		Clock:      clock,
		Logger:     serviceLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Repository: deps.Registry.Users(),
		Clock:      clock,
		Logger:     serviceLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases repository clients and any other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}
