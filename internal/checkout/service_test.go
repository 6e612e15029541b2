package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/internal/fulfillment"
	"github.com/atmosfood/storefront-backend/internal/orders"
	"github.com/atmosfood/storefront-backend/internal/pricing"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const fixtureTable = `
kitchen: hub
bounds:
  min_lat: 8.3
  max_lat: 8.6
  min_lng: 4.4
  max_lng: 4.7
default_radius_km: 2
lgas:
  - name: Central
    surcharge: 100
    areas:
      - id: hub
        name: Hub Junction
        lat: 8.50
        lng: 4.50
        keywords: [hub]
      - id: market
        name: Market Square
        lat: 8.45
        lng: 4.60
        keywords: [market]
`

var (
	jollof  = catalog.MenuItem{ID: "jollof", Name: "Jollof Rice", Price: 4500, Category: enums.CategoryGrains}
	zobo    = catalog.MenuItem{ID: "zobo", Name: "Zobo", Price: 1000, Category: enums.CategoryDrinks}
	chicken = catalog.Protein{ID: "chicken", Name: "Grilled Chicken", Price: 3500}
)

type stubSubmitter struct {
	mu       sync.Mutex
	result   orders.SubmitResult
	err      error
	payloads []types.CheckoutPayload
	keys     []string
}

func (s *stubSubmitter) Submit(_ context.Context, key string, payload types.CheckoutPayload) (orders.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func (s *stubSubmitter) Fetch(context.Context, string) (orders.RemoteOrder, error) {
	return orders.RemoteOrder{}, nil
}

func (s *stubSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// flakyPending fails CompleteSubmission the given number of times.
type flakyPending struct {
	PendingRepository
	failComplete int
}

func (f *flakyPending) CompleteSubmission(ctx context.Context, token uuid.UUID, placed Placement) (bool, error) {
	if f.failComplete > 0 {
		f.failComplete--
		return false, errors.New("connection lost")
	}
	return f.PendingRepository.CompleteSubmission(ctx, token, placed)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingEvents struct {
	mu     sync.Mutex
	events []pubsub.OrderEvent
}

func (r *recordingEvents) Publish(_ context.Context, evt pubsub.OrderEvent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return "id", nil
}

type outcomeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *outcomeMetrics) IncCheckoutOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

type harness struct {
	svc         Service
	carts       cart.Service
	fulfillment fulfillment.Service
	upstream    *stubSubmitter
	pending     PendingRepository
	orders      orders.Repository
	events      *recordingEvents
	metrics     *outcomeMetrics
	redis       *pkgredis.Client
	logs        *syncBuffer
	now         *time.Time
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout-%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test wrap the pending repository the service uses.
func newHarnessWith(t *testing.T, wrap func(PendingRepository) PendingRepository) *harness {
	t.Helper()
	logs := &syncBuffer{}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: logs})

	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	cat := catalog.NewStaticService(catalog.Catalog{
		Items:    []catalog.MenuItem{jollof, zobo},
		Proteins: []catalog.Protein{chicken},
	})
	carts, err := cart.NewService(cart.NewRedisStore(client, time.Hour, time.Hour), cat, config.NudgeConfig{}, logg, nil)
	require.NoError(t, err)

	table, err := areas.Load(strings.NewReader(fixtureTable))
	require.NoError(t, err)
	resolver, err := address.NewService(address.ServiceParams{
		Areas:   table,
		Kitchen: types.GeoPoint{Lat: 8.5, Lng: 4.5},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	ful, err := fulfillment.NewService(fulfillment.ServiceParams{
		Store:    fulfillment.NewRedisStore(client, time.Hour),
		Areas:    table,
		Resolver: resolver,
		Logger:   logg,
	})
	require.NoError(t, err)

	engine, err := pricing.NewEngine(config.DeliveryConfig{
		Policy:           config.DeliveryPolicyArea,
		BaseFee:          400,
		DistanceFloorKm:  2,
		DistanceFloorFee: 500,
		PerKmRate:        200,
		KitchenLat:       8.5,
		KitchenLng:       4.5,
	}, table)
	require.NoError(t, err)

	conn := setupCheckoutTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		carts:       carts,
		fulfillment: ful,
		upstream:    &stubSubmitter{result: orders.SubmitResult{OrderID: "64ab", OrderReference: "ATM-7781", VerificationCode: "118822"}},
		pending:     NewPendingRepository(conn),
		orders:      orders.NewRepository(conn),
		events:      &recordingEvents{},
		metrics:     &outcomeMetrics{},
		redis:       client,
		logs:        logs,
		now:         &now,
	}
	if wrap != nil {
		h.pending = wrap(h.pending)
	}
	h.svc, err = NewService(ServiceParams{
		Carts:       carts,
		Fulfillment: ful,
		Pricing:     engine,
		Upstream:    h.upstream,
		Pending:     h.pending,
		Orders:      h.orders,
		Tx:          db.NewFromGorm(conn),
		Locks:       client,
		Events:      h.events,
		Metrics:     h.metrics,
		Logger:      logg,
		PendingTTL:  10 * time.Minute,
		LockTTL:     time.Minute,
		Now:         func() time.Time { return *h.now },
	})
	require.NoError(t, err)
	return h
}

func strPtr(v string) *string { return &v }

func (h *harness) readyForDelivery(t *testing.T, session string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.carts.AddItem(ctx, session, cart.AddItemInput{ItemID: "jollof", ProteinIDs: []string{"chicken"}})
	require.NoError(t, err)
	_, err = h.carts.AddItem(ctx, session, cart.AddItemInput{ItemID: "zobo", Quantity: 2})
	require.NoError(t, err)
	_, err = h.fulfillment.SelectArea(ctx, session, "market")
	require.NoError(t, err)
	_, err = h.fulfillment.UpdateDetails(ctx, session, fulfillment.DetailsInput{
		Name:    strPtr("Tola"),
		Phone:   strPtr("08030000000"),
		Email:   strPtr("Tola@Example.com"),
		Address: strPtr("12 Hub Road"),
	})
	require.NoError(t, err)
}

func TestSummaryEmptyCartHasNoFee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.fulfillment.SelectArea(ctx, "s1", "hub")
	require.NoError(t, err)

	summary, err := h.svc.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, summary.Cart.Subtotal)
	assert.Zero(t, summary.Cart.DeliveryFee)
	assert.Zero(t, summary.Cart.Total)
	assert.False(t, summary.CanSubmit)
}

func TestSummaryPricesDeliveryArea(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")

	summary, err := h.svc.Summary(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 10000, summary.Cart.Subtotal)
	assert.EqualValues(t, 500, summary.Cart.DeliveryFee)
	assert.EqualValues(t, 10500, summary.Cart.Total)
	assert.True(t, summary.Cart.FeeResolved)
	assert.True(t, summary.CanSubmit)
}

func TestSubmitCreatesPendingAndClearsSession(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "ATM-7781", pending.OrderReference)
	assert.Equal(t, "118822", pending.VerificationCode)
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, pending.Status)
	assert.True(t, h.now.Add(10*time.Minute).Equal(pending.ExpiresAt))
	assert.EqualValues(t, 600, pending.SecondsRemaining)

	require.Equal(t, 1, h.upstream.calls())
	sent := h.upstream.payloads[0]
	assert.Equal(t, "tola@example.com", sent.Email)
	assert.Equal(t, "12 Hub Road", sent.Address)
	assert.Equal(t, "market", sent.AreaID)
	assert.EqualValues(t, 10500, sent.TotalAmount)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, []string{"chicken"}, sent.Items[0].ProteinIDs)

	c, err := h.carts.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	view, err := h.fulfillment.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, view.Config.Contact.Name)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, pubsub.EventOrderPlaced, h.events.events[0].EventType)
	assert.Equal(t, 3, h.events.events[0].ItemCount)
	assert.Equal(t, 1, h.metrics.outcomes[OutcomeSubmitted])
}

func TestSubmitReplaysIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	first, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	require.NoError(t, err)
	again, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.Token, again.Token)
	assert.Equal(t, 1, h.upstream.calls())

	_, err = h.svc.Submit(ctx, "other", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestSubmitGeneratesReferenceWhenUpstreamOmitsIt(t *testing.T) {
	h := newHarness(t)
	h.upstream.result = orders.SubmitResult{OrderID: "64ab"}
	h.readyForDelivery(t, "s1")

	pending, err := h.svc.Submit(context.Background(), "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pending.OrderReference, "ATM-"))
	assert.Len(t, pending.OrderReference, len("ATM-")+8)
	assert.Len(t, pending.VerificationCode, 6)
}

func TestSubmitRejectsIncompleteCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart")

	_, err = h.carts.AddItem(ctx, "s1", cart.AddItemInput{ItemID: "jollof"})
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details["missing"], fulfillment.FieldName)

	_, err = h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: "cash", IdempotencyKey: "k2"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.upstream.calls())
}

func TestSubmitPickupNeedsOnlyNameAndPhone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.carts.AddItem(ctx, "s1", cart.AddItemInput{ItemID: "jollof"})
	require.NoError(t, err)
	_, err = h.fulfillment.SetMethod(ctx, "s1", enums.DeliveryMethodPickup)
	require.NoError(t, err)
	_, err = h.fulfillment.UpdateDetails(ctx, "s1", fulfillment.DetailsInput{Name: strPtr("Bisi"), Phone: strPtr("0801")})
	require.NoError(t, err)

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Order.DeliveryFee)
	assert.EqualValues(t, 4500, pending.Order.TotalAmount)
	assert.Empty(t, pending.Order.Address)
}

func TestSubmitFailureKeepsCartAndDetails(t *testing.T) {
	h := newHarness(t)
	h.upstream.err = errors.New("connection reset")
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	c, err := h.carts.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)
	view, err := h.fulfillment.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Tola", view.Config.Contact.Name)
	assert.Equal(t, 1, h.metrics.outcomes[OutcomeFailed])

	h.upstream.err = nil
	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k1"})
	require.NoError(t, err, "the lock is released after a failure")
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, pending.Status)
	assert.Equal(t, []string{"k1", "k1"}, h.upstream.keys)
}

func TestSubmitRejectsConcurrentSubmitForSession(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	held, err := h.redis.SetNX(ctx, h.redis.LockKey("checkout", "s1"), "other", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodCard, IdempotencyKey: "k2"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, h.upstream.calls())
}

func TestConfirmPendingRecordsOrderOnce(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)

	*h.now = h.now.Add(5 * time.Minute)
	res, err := h.svc.ConfirmPending(ctx, "s1", pending.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusConfirmed, res.Pending.Status)
	assert.Equal(t, "ATM-7781", res.Order.OrderReference)
	assert.Equal(t, enums.OrderStatusPreparing, res.Order.Status)
	assert.EqualValues(t, 10500, res.Order.TotalAmount)
	require.NotNil(t, res.Order.DeliveryAreaID)
	assert.Equal(t, "market", *res.Order.DeliveryAreaID)

	again, err := h.svc.ConfirmPending(ctx, "s1", pending.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, again.Order.ID)

	stored, err := h.orders.FindByReference(ctx, "ATM-7781")
	require.NoError(t, err)
	assert.Equal(t, "tola@example.com", stored.Email)

	var confirmed int
	for _, evt := range h.events.events {
		if evt.EventType == pubsub.EventOrderConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestConfirmPendingAfterExpiryFails(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)

	*h.now = h.now.Add(10 * time.Minute)
	_, err = h.svc.ConfirmPending(ctx, "s1", pending.Token)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	view, err := h.svc.GetPending(ctx, "s1", pending.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusExpired, view.Status)
	assert.Zero(t, view.SecondsRemaining)

	_, err = h.orders.FindByReference(ctx, "ATM-7781")
	assert.True(t, db.IsNotFound(err))
}

func TestGetPendingIsSessionScoped(t *testing.T) {
	h := newHarness(t)
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)

	*h.now = h.now.Add(4 * time.Minute)
	view, err := h.svc.GetPending(ctx, "s1", pending.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 360, view.SecondsRemaining)

	_, err = h.svc.GetPending(ctx, "s2", pending.Token)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.GetPending(ctx, "s1", uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSubmitResumesAfterRecordFailure(t *testing.T) {
	flaky := &flakyPending{failComplete: 1}
	h := newHarnessWith(t, func(repo PendingRepository) PendingRepository {
		flaky.PendingRepository = repo
		return flaky
	})
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	c, err := h.carts.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2, "the cart is kept until the order is recorded")
	inFlight, err := h.pending.FindByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusSubmitting, inFlight.Status)
	assert.Empty(t, h.events.events)

	view, err := h.svc.GetPending(ctx, "s1", inFlight.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingCheckoutStatusSubmitting, view.Status)
	_, err = h.svc.ConfirmPending(ctx, "s1", inFlight.Token)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, inFlight.Token, pending.Token)
	assert.Equal(t, "ATM-7781", pending.OrderReference)
	assert.Equal(t, enums.PendingCheckoutStatusAwaitingPayment, pending.Status)
	assert.Equal(t, []string{"k1", "k1"}, h.upstream.keys, "the retry reuses the upstream idempotency key")

	c, err = h.carts.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	require.Len(t, h.events.events, 1)

	again, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, pending.Token, again.Token)
	assert.Len(t, h.upstream.keys, 2)
}

func TestSubmitKeepsPaymentInstructions(t *testing.T) {
	h := newHarness(t)
	h.upstream.result = orders.SubmitResult{
		OrderID:             "64ab",
		OrderReference:      "ATM-7781",
		TotalAmount:         10900,
		PaymentInstructions: "Transfer to 0123456789 (Atmos Foods)",
	}
	h.readyForDelivery(t, "s1")
	ctx := context.Background()

	pending, err := h.svc.Submit(ctx, "s1", SubmitInput{PaymentMethod: enums.PaymentMethodBankTransfer, IdempotencyKey: "k1"})
	require.NoError(t, err)
	require.NotNil(t, pending.PaymentInstructions)
	assert.Equal(t, "Transfer to 0123456789 (Atmos Foods)", *pending.PaymentInstructions)
	assert.Nil(t, pending.PaymentURL)
	assert.EqualValues(t, 10500, pending.Order.TotalAmount)

	view, err := h.svc.GetPending(ctx, "s1", pending.Token)
	require.NoError(t, err)
	require.NotNil(t, view.PaymentInstructions)
	assert.Equal(t, *pending.PaymentInstructions, *view.PaymentInstructions)

	logs := h.logs.String()
	assert.Contains(t, logs, "upstream total differs from quoted total")
	assert.Contains(t, logs, `"upstream_total":10900`)
}
