package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gearstore/api/internal/di"
	"github.com/gearstore/api/internal/handlers"
	"github.com/gearstore/api/internal/platform/auth"
	"github.com/gearstore/api/internal/platform/config"
	"github.com/gearstore/api/internal/platform/events"
	pfirestore "github.com/gearstore/api/internal/platform/firestore"
	"github.com/gearstore/api/internal/platform/observability"
	"github.com/gearstore/api/internal/platform/payment"
	"github.com/gearstore/api/internal/platform/secrets"
	firestorerepo "github.com/gearstore/api/internal/repositories/firestore"
	"github.com/gearstore/api/internal/repositories/localstore"
	"github.com/gearstore/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestorerepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to build repository registry", zap.Error(err))
	}

	guestStore, err := localstore.NewStore(cfg.GuestCart.Dir)
	if err != nil {
		logger.Fatal("failed to initialise guest cart store", zap.Error(err))
	}

	gateway := payment.NewGateway(cfg.Checkout.PaymentAPIKey,
		payment.WithSettlementDelay(cfg.Checkout.PaymentDelay),
	)

	var publisher services.OrderEventPublisher
	if cfg.Features.EnableOrderEvents {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.Events.OrderTopic)
		defer topic.Stop()

		publisher, err = events.NewPubSubOrderPublisher(topic)
		if err != nil {
			logger.Fatal("failed to build order publisher", zap.Error(err))
		}
	}

	container, err := di.NewContainer(ctx, cfg, di.Deps{
		Registry:   registry,
		GuestStore: guestStore,
		Payments:   gateway,
		Events:     publisher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authn := auth.NewAuthenticator(verifier)

	cartHandlers := handlers.NewCartHandlers(authn, container.Services.Cart)
	productHandlers := handlers.NewProductHandlers(container.Services.Catalog)
	checkoutHandlers := handlers.NewCheckoutHandlers(authn, container.Services.Checkout)
	orderHandlers := handlers.NewOrderHandlers(authn, container.Services.Orders)
	meHandlers := handlers.NewMeHandlers(authn, container.Services.Users)

	health := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			_, err := firestoreProvider.Client(ctx)
			return err
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithProductRoutes(func(r chi.Router) { productHandlers.Routes(r) }),
		handlers.WithCartRoutes(func(r chi.Router) { cartHandlers.Routes(r) }),
		handlers.WithCheckoutRoutes(func(r chi.Router) { checkoutHandlers.Routes(r) }),
		handlers.WithOrderRoutes(func(r chi.Router) { orderHandlers.Routes(r) }),
		handlers.WithMeRoutes(func(r chi.Router) { meHandlers.Routes(r) }),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server failed", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
