package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	orderSyncJobName     = "order-status-sync"
	defaultSyncLookback  = 24 * time.Hour
	defaultSyncBatchSize = 100
)

type activeOrderReader interface {
	ListActive(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
}

type orderRefresher interface {
	Refresh(ctx context.Context, id uuid.UUID) error
}

// RefresherFunc adapts a function to the refresher used by the sync job.
type RefresherFunc func(ctx context.Context, id uuid.UUID) error

func (f RefresherFunc) Refresh(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

// OrderSyncJobParams configure the order status sync.
type OrderSyncJobParams struct {
	Logger    *logger.Logger
	Orders    activeOrderReader
	Refresher orderRefresher
	Lookback  time.Duration
	BatchSize int
}

// NewOrderSyncJob pulls kitchen status for recent orders that are not final.
func NewOrderSyncJob(params OrderSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Refresher == nil {
		return nil, fmt.Errorf("order refresher required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultSyncLookback
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSyncBatchSize
	}
	return &orderSyncJob{
		logg:      params.Logger,
		orders:    params.Orders,
		refresher: params.Refresher,
		lookback:  lookback,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type orderSyncJob struct {
	logg      *logger.Logger
	orders    activeOrderReader
	refresher orderRefresher
	lookback  time.Duration
	batch     int
	now       func() time.Time
}

func (j *orderSyncJob) Name() string { return orderSyncJobName }

// Run refreshes every candidate even when some fail; failures are combined.
func (j *orderSyncJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	rows, err := j.orders.ListActive(ctx, since, j.batch)
	if err != nil {
		return fmt.Errorf("list active orders: %w", err)
	}
	var errs error
	for _, order := range rows {
		if err := j.refresher.Refresh(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderReference, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"checked": len(rows),
		"failed":  len(multierr.Errors(errs)),
	}), "order status sync complete")
	return errs
}
