package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/instance"
	"github.com/angelmondragon/mygros-backend/pkg/kafka"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/migrate"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/registry"
	"github.com/angelmondragon/mygros-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(ctx, "outbox publisher stopped", err)
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
		"broker":      cfg.Eventing.Broker,
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

	broker, factory, closer, err := buildBroker(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer closer.Close()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               dbClient,
		Broker:           broker,
		BrokerName:       cfg.Eventing.Broker,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Registry:         eventRegistry,
		PublisherFactory: factory,
		DLQRepository:    outbox.NewDLQRepository(dbClient.DB()),
		Metrics:          metrics.NewOutboxMetrics(promRegistry),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, ":"+cfg.App.MetricsPort, promRegistry)
	})
	g.Go(func() error {
		logg.Info(gctx, "starting outbox publisher")
		if err := service.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	err = g.Wait()
	logg.Info(ctx, "outbox publisher shut down")
	return err
}

func buildBroker(ctx context.Context, cfg *config.Config, logg *logger.Logger) (brokerClient, publisherFactory, io.Closer, error) {
	if cfg.Eventing.UsesKafka() {
		producer, err := kafka.NewProducer(cfg.Kafka, logg)
		if err != nil {
			return nil, nil, nil, err
		}
		return producer, kafkaPublisherFactory(producer), producer, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.PublisherRequirements(cfg.PubSub), logg)
	if err != nil {
		return nil, nil, nil, err
	}
	return client, pubSubPublisherFactory(client), client, nil
}
