package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/mygros-backend/internal/cart"
	"github.com/angelmondragon/mygros-backend/internal/cron"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/instance"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/migrate"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(ctx, "cron worker stopped", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName
	logg := logger.ForService(serviceName, cfg.App)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(serviceName),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	promRegistry := prometheus.NewRegistry()
	service, err := newService(cfg, logg, dbClient, redisClient, promRegistry)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, ":"+cfg.App.MetricsPort, promRegistry)
	})
	g.Go(func() error {
		logg.Info(gctx, "starting cron worker")
		if err := service.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logg.Info(ctx, "cron worker shut down")
	return err
}

func newService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), 0)
	if err != nil {
		return nil, fmt.Errorf("maintenance lock: %w", err)
	}

	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Maintenance.OutboxRetentionDays,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	cartJob, err := cron.NewStaleCartJob(cron.StaleCartJobParams{
		Logger:        logg,
		Carts:         cart.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Maintenance.CartRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("stale cart job: %w", err)
	}
	jobs, err := cron.NewRegistry(outboxJob, cartJob)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    metrics.NewJobMetrics(reg),
		Interval:   cfg.Maintenance.Interval,
		JobTimeout: cfg.Maintenance.JobTimeout,
	})
}
