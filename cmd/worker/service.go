package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer consumer
}

type dependency struct {
	name string
	pinger
}

// Service starts the notification consumer once the database, Redis and
// Pub/Sub all answer a ping.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer consumer
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	deps := []dependency{{"database", params.DB}, {"redis", params.Redis}, {"pubsub", params.PubSub}}
	for _, dep := range deps {
		if dep.pinger == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	return &Service{logg: params.Logger, deps: deps, consumer: params.Consumer}, nil
}

// ready pings every dependency and reports all that failed.
func (s *Service) ready(ctx context.Context) error {
	var errs error
	for _, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s ping failed: %w", dep.name, err))
		}
	}
	return errs
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		s.logg.Error(ctx, "worker dependencies not ready", err)
		return err
	}
	s.logg.Info(ctx, "worker dependencies ready")

	err := s.consumer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
	}
	return err
}
