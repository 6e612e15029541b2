package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPending(t *testing.T, repo PendingRepository, key string, expiresAt time.Time) *models.PendingCheckout {
	t.Helper()
	created, err := repo.Create(context.Background(), &models.PendingCheckout{
		IdempotencyKey:   key,
		SessionID:        "s1",
		OrderReference:   "ATM-" + key,
		VerificationCode: "123456",
		Payload: types.CheckoutPayload{
			Items:          types.OrderLines{},
			CustomerName:   "Tola",
			Phone:          "0803",
			DeliveryMethod: enums.DeliveryMethodPickup,
			PaymentMethod:  enums.PaymentMethodBankTransfer,
		},
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return created
}

func TestPendingRepositoryLookups(t *testing.T) {
	repo := NewPendingRepository(setupCheckoutTestDB(t))
	ctx := context.Background()
	created := seedPending(t, repo, "k1", time.Now().Add(time.Hour))
	assert.NotEqual(t, uuid.Nil, created.Token)
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, created.Status)

	byToken, err := repo.FindByToken(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, "Tola", byToken.Payload.CustomerName)

	byKey, err := repo.FindByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, created.Token, byKey.Token)

	_, err = repo.FindByIdempotencyKey(ctx, "missing")
	assert.True(t, db.IsNotFound(err))

	_, err = repo.Create(ctx, &models.PendingCheckout{IdempotencyKey: "k1", SessionID: "s2", ExpiresAt: time.Now()})
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestPendingRepositoryStatusTransitionsAreGuarded(t *testing.T) {
	repo := NewPendingRepository(setupCheckoutTestDB(t))
	ctx := context.Background()
	pending := seedPending(t, repo, "k1", time.Now().Add(time.Hour))

	ok, err := repo.MarkConfirmed(ctx, pending.Token, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConfirmed(ctx, pending.Token, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkExpired(ctx, pending.Token)
	require.NoError(t, err)
	assert.False(t, ok, "confirmed records never expire")
}

func TestPendingRepositoryExpireBefore(t *testing.T) {
	repo := NewPendingRepository(setupCheckoutTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale1 := seedPending(t, repo, "k1", now.Add(-20*time.Minute))
	stale2 := seedPending(t, repo, "k2", now.Add(-10*time.Minute))
	fresh := seedPending(t, repo, "k3", now.Add(5*time.Minute))

	n, err := repo.ExpireBefore(ctx, now, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	first, err := repo.FindByToken(ctx, stale1.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusExpired, first.Status)

	n, err = repo.ExpireBefore(ctx, now, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	second, err := repo.FindByToken(ctx, stale2.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusExpired, second.Status)
	untouched, err := repo.FindByToken(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, untouched.Status)
}

func TestPendingRepositorySubmissionLifecycle(t *testing.T) {
	repo := NewPendingRepository(setupCheckoutTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, &models.PendingCheckout{
		IdempotencyKey:   "k1",
		SessionID:        "s1",
		OrderReference:   "ATM-LOCAL",
		VerificationCode: "123456",
		Payload:          types.CheckoutPayload{Items: types.OrderLines{}, CustomerName: "Tola", TotalAmount: 4500},
		Status:           enums.PendingCheckoutStatusSubmitting,
		ExpiresAt:        now,
	})
	require.NoError(t, err)

	n, err := repo.ExpireBefore(ctx, now.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Zero(t, n, "submitting records are not swept")

	ok, err := repo.RefreshSubmission(ctx, created.Token, types.CheckoutPayload{Items: types.OrderLines{}, CustomerName: "Tola", TotalAmount: 9000})
	require.NoError(t, err)
	assert.True(t, ok)

	instructions := "Transfer to 0123456789"
	ok, err = repo.CompleteSubmission(ctx, created.Token, Placement{
		UpstreamOrderID:     "64ab",
		OrderReference:      "ATM-7781",
		VerificationCode:    "118822",
		PaymentInstructions: &instructions,
		ExpiresAt:           now.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	placed, err := repo.FindByToken(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, placed.Status)
	assert.Equal(t, "ATM-7781", placed.OrderReference)
	assert.Equal(t, "64ab", placed.UpstreamOrderID)
	assert.EqualValues(t, 9000, placed.Payload.TotalAmount)
	require.NotNil(t, placed.PaymentInstructions)
	assert.Equal(t, instructions, *placed.PaymentInstructions)
	assert.Nil(t, placed.PaymentURL)

	ok, err = repo.CompleteSubmission(ctx, created.Token, Placement{OrderReference: "ATM-AGAIN", ExpiresAt: now})
	require.NoError(t, err)
	assert.False(t, ok, "placed records are not completed twice")
	ok, err = repo.RefreshSubmission(ctx, created.Token, types.CheckoutPayload{})
	require.NoError(t, err)
	assert.False(t, ok)
}
