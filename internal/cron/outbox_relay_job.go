package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/outbox"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
)

const (
	outboxRelayJobName      = "order-event-relay"
	defaultRelayBatchSize   = 50
	defaultRelayMaxAttempts = 10
	maxRelayBatchesPerCycle = 10
)

type outboxStore interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	MarkTerminal(ctx context.Context, id uuid.UUID, cause error, maxAttempts int) error
}

type orderEventPublisher interface {
	Publish(ctx context.Context, evt pubsub.OrderEvent) (string, error)
}

// OutboxRelayJobParams configure the order event relay.
type OutboxRelayJobParams struct {
	Logger      *logger.Logger
	Outbox      outboxStore
	Publisher   orderEventPublisher
	BatchSize   int
	MaxAttempts int
}

// NewOutboxRelayJob publishes queued order events to Pub/Sub.
func NewOutboxRelayJob(params OutboxRelayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRelayBatchSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultRelayMaxAttempts
	}
	return &outboxRelayJob{
		logg:        params.Logger,
		outbox:      params.Outbox,
		publisher:   params.Publisher,
		batch:       batch,
		maxAttempts: attempts,
		now:         time.Now,
	}, nil
}

type outboxRelayJob struct {
	logg        *logger.Logger
	outbox      outboxStore
	publisher   orderEventPublisher
	batch       int
	maxAttempts int
	now         func() time.Time
}

func (j *outboxRelayJob) Name() string { return outboxRelayJobName }

// Run drains the outbox in created order. A failed publish stops the cycle so
// later events for the same order are not sent ahead of it.
func (j *outboxRelayJob) Run(ctx context.Context) error {
	var published, parked int
	var errs error
	for i := 0; i < maxRelayBatchesPerCycle; i++ {
		rows, err := j.outbox.FetchUnpublished(ctx, j.batch, j.maxAttempts)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("fetch outbox events: %w", err))
		}
		for _, row := range rows {
			evt, err := outbox.Decode(row)
			if err != nil {
				parked++
				errs = multierr.Append(errs, fmt.Errorf("event %s: %w", row.ID, err))
				if markErr := j.outbox.MarkTerminal(ctx, row.ID, err, j.maxAttempts); markErr != nil {
					return multierr.Append(errs, markErr)
				}
				continue
			}
			if _, err := j.publisher.Publish(ctx, evt); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("publish event %s: %w", row.ID, err))
				errs = multierr.Append(errs, j.outbox.MarkFailed(ctx, row.ID, err))
				j.logRun(ctx, published, parked)
				return errs
			}
			if err := j.outbox.MarkPublished(ctx, row.ID, j.now().UTC()); err != nil {
				return multierr.Append(errs, fmt.Errorf("mark event %s published: %w", row.ID, err))
			}
			published++
		}
		if len(rows) < j.batch {
			break
		}
	}
	j.logRun(ctx, published, parked)
	return errs
}

func (j *outboxRelayJob) logRun(ctx context.Context, published, parked int) {
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published": published,
		"parked":    parked,
	}), "order event relay complete")
}
