package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type batchExpirer struct {
	batches []int64
	cutoffs []time.Time
	limits  []int
	err     error
}

func (b *batchExpirer) ExpireBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	b.cutoffs = append(b.cutoffs, cutoff)
	b.limits = append(b.limits, limit)
	if len(b.batches) == 0 {
		return 0, nil
	}
	n := b.batches[0]
	b.batches = b.batches[1:]
	return n, nil
}

func TestPendingExpiryJobDrainsFullBatches(t *testing.T) {
	expirer := &batchExpirer{batches: []int64{2, 2, 1}}
	job, err := NewPendingExpiryJob(PendingExpiryJobParams{Logger: testLogger(), Pending: expirer, BatchSize: 2})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.(*pendingExpiryJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(expirer.cutoffs) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(expirer.cutoffs))
	}
	if !expirer.cutoffs[0].Equal(now) || expirer.limits[0] != 2 {
		t.Fatalf("unexpected cutoff %v limit %d", expirer.cutoffs[0], expirer.limits[0])
	}
	if job.Name() != "pending-checkout-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
}

func TestPendingExpiryJobSurfacesErrors(t *testing.T) {
	job, _ := NewPendingExpiryJob(PendingExpiryJobParams{Logger: testLogger(), Pending: &batchExpirer{err: errors.New("db down")}})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type staticActive struct {
	rows  []models.Order
	since time.Time
}

func (s *staticActive) ListActive(_ context.Context, since time.Time, _ int) ([]models.Order, error) {
	s.since = since
	return s.rows, nil
}

func TestOrderSyncJobRefreshesEveryOrder(t *testing.T) {
	failing := uuid.New()
	reader := &staticActive{rows: []models.Order{
		{ID: uuid.New(), OrderReference: "ATM-1"},
		{ID: failing, OrderReference: "ATM-2"},
		{ID: uuid.New(), OrderReference: "ATM-3"},
	}}
	var refreshed []uuid.UUID
	job, err := NewOrderSyncJob(OrderSyncJobParams{
		Logger: testLogger(),
		Orders: reader,
		Refresher: RefresherFunc(func(_ context.Context, id uuid.UUID) error {
			refreshed = append(refreshed, id)
			if id == failing {
				return errors.New("upstream 502")
			}
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	job.(*orderSyncJob).now = func() time.Time { return now }

	err = job.Run(context.Background())
	if len(refreshed) != 3 {
		t.Fatalf("expected 3 refreshes, got %d", len(refreshed))
	}
	if got := len(multierr.Errors(err)); got != 1 {
		t.Fatalf("expected one failure, got %d", got)
	}
	if !reader.since.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected lookback %v", reader.since)
	}
}
