package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/accounts"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceName = "api"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogSvc, err := catalog.NewService(catalogRepo, dbClient, logg)
	if err != nil {
		return err
	}
	if cfg.FeatureFlags.SeedCatalog {
		if _, err := catalogSvc.SeedDefaults(ctx); err != nil {
			return err
		}
	}

	deps := routes.Dependencies{
		Catalog:   catalogSvc,
		Readiness: map[string]controllers.Pinger{"db": dbClient},
	}

	var (
		sessionStore session.Store
		cartStore    cart.Store
	)
	if cfg.Cart.UsesRedis() {
		var redisClient *redis.Client
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()

		redisCart, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
		if err != nil {
			return err
		}
		sessionStore = redisClient
		cartStore = redisCart
		deps.RateLimiter = redisClient
		deps.Idempotency = redisClient
		deps.Readiness["redis"] = redisClient
	} else {
		logg.Warn(ctx, "memory backend selected; carts and sessions are lost on restart")
		sessionStore = session.NewMemoryStore()
		cartStore = cart.NewMemoryStore(cfg.Cart.TTL)
	}

	sessions, err := session.NewManager(sessionStore, cfg.Session)
	if err != nil {
		return err
	}
	deps.Sessions = sessions

	deps.Accounts, err = accounts.NewService(accounts.ServiceParams{
		Repo:           accounts.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		Sessions:       sessions,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}

	deps.Cart, err = cart.NewService(cartStore, catalogSvc)
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	deps.Orders, err = orders.NewService(ordersRepo)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.HTTPMetrics = metrics.NewHTTPMetrics(promRegistry)
	deps.MetricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	deps.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Tx:      dbClient,
		Cart:    deps.Cart,
		Catalog: catalogRepo,
		Orders:  ordersRepo,
		Outbox:  outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics: metrics.NewCheckoutMetrics(promRegistry),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"db_driver":    cfg.DB.Driver,
		"cart_backend": cfg.Cart.Backend,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := bootstrap.Serve(ctx, server, cfg.App.ShutdownTimeout); err != nil {
		return err
	}
	logg.Info(logCtx, "api server stopped")
	return nil
}
