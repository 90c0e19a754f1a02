package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/mygros-backend/internal/analytics/router"
	"github.com/angelmondragon/mygros-backend/internal/analytics/worker"
	"github.com/angelmondragon/mygros-backend/internal/analytics/writer"
	"github.com/angelmondragon/mygros-backend/pkg/bigquery"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/instance"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/registry"
	"github.com/angelmondragon/mygros-backend/pkg/pubsub"
	"github.com/angelmondragon/mygros-backend/pkg/redis"
)

const (
	serviceName  = "analytics-worker"
	flushTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(ctx, "analytics worker stopped", err)
		stop()
		os.Exit(1)
	}
}

// run consumes analytics events into BigQuery until ctx is canceled. Rows
// still buffered in the writer are flushed on the way out.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName
	logg := logger.ForService(serviceName, cfg.App)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"instance":     instance.ID(serviceName),
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.AnalyticsRequirements(cfg.PubSub), logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer pubsubClient.Close()

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer bqClient.Close()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	salesWriter, err := writer.New(bqClient, writer.Config{})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := salesWriter.Flush(flushCtx); err != nil {
			logg.Error(ctx, "failed to flush sales rows", err)
		}
	}()

	salesRouter, err := router.NewRouter(salesWriter, registry.NewDefaultDecoderRegistry(), logg)
	if err != nil {
		return err
	}
	service, err := worker.NewService(subscription, salesRouter, manager, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
