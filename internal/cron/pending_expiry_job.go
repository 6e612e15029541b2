package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/logger"
)

const (
	pendingExpiryJobName   = "pending-checkout-expiry"
	defaultExpiryBatchSize = 500
	maxExpiryBatches       = 20
)

type pendingExpirer interface {
	ExpireBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// PendingExpiryJobParams configure the pending checkout sweep.
type PendingExpiryJobParams struct {
	Logger    *logger.Logger
	Pending   pendingExpirer
	BatchSize int
}

// NewPendingExpiryJob expires checkouts whose payment window closed. Reads
// expire lazily too; the sweep keeps stale rows from piling up.
func NewPendingExpiryJob(params PendingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending checkout repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &pendingExpiryJob{
		logg:    params.Logger,
		pending: params.Pending,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type pendingExpiryJob struct {
	logg    *logger.Logger
	pending pendingExpirer
	batch   int
	now     func() time.Time
}

func (j *pendingExpiryJob) Name() string { return pendingExpiryJobName }

func (j *pendingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var total int64
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.pending.ExpireBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("expire pending checkouts: %w", err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "pending checkout sweep complete")
	return nil
}
