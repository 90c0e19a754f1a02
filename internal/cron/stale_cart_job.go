package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

const defaultCartRetentionDays = 45

type staleCartPruner interface {
	DeleteStaleItems(ctx context.Context, cutoff time.Time) (int64, error)
}

type StaleCartJobParams struct {
	Logger        *logger.Logger
	Carts         staleCartPruner
	RetentionDays int
}

// NewStaleCartJob empties carts abandoned for longer than the retention
// window.
func NewStaleCartJob(params StaleCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultCartRetentionDays
	}
	return &staleCartJob{
		logg:      params.Logger,
		carts:     params.Carts,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

type staleCartJob struct {
	logg      *logger.Logger
	carts     staleCartPruner
	retention time.Duration
	now       func() time.Time
}

func (j *staleCartJob) Name() string { return "stale-carts" }

func (j *staleCartJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.carts.DeleteStaleItems(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune carts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"lines_deleted": deleted,
	}), "stale cart cleanup complete")
	return nil
}
