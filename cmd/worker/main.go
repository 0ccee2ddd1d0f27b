package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/internal/consumers/sales"
	"github.com/angelmondragon/storefront-backend/pkg/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceName = "order-events-worker"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "order events worker failed", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	if !cfg.Redis.Configured() {
		return errors.New("redis endpoint not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "instanceId": instance.GetID()})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	subscription := pubsubClient.OrdersSubscriber()
	if subscription == nil {
		return errors.New("orders subscription not configured")
	}

	promRegistry := prometheus.NewRegistry()
	consumer, err := sales.NewConsumer(redisClient, subscription, logg, metrics.NewJobMetrics(promRegistry))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
		"redis":  redisClient,
		"pubsub": pubsubClient,
	}))
	r.Get("/reports/sales", controllers.SalesDaily(consumer, logg))
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	// whichever of the consumer and the http server stops first stops the other
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	served := make(chan error, 1)
	go func() {
		err := bootstrap.Serve(runCtx, &http.Server{Addr: cfg.Worker.Addr, Handler: r}, cfg.App.ShutdownTimeout)
		cancel()
		served <- err
	}()

	logg.Info(ctx, "order events worker ready")
	runErr := consumer.Run(runCtx)
	cancel()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if err := multierr.Append(runErr, <-served); err != nil {
		return err
	}
	logg.Info(ctx, "order events worker shutting down gracefully")
	return nil
}
