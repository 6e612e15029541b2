package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/fulfillment"
	"github.com/atmosfood/storefront-backend/internal/orders"
	"github.com/atmosfood/storefront-backend/internal/pricing"
	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	referencePrefix        = "ATM-"
	verificationCodeDigits = 6

	lockScope = "checkout"

	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
	OutcomeConfirmed = "confirmed"
	OutcomeExpired   = "expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope string, parts ...string) string
}

type eventPublisher interface {
	Publish(ctx context.Context, evt pubsub.OrderEvent) (string, error)
}

type outcomeCounter interface {
	IncCheckoutOutcome(outcome string)
}

// SubmitInput is the checkout request. The idempotency key comes from the
// request header.
type SubmitInput struct {
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod" validate:"required"`
	IdempotencyKey string              `json:"-"`
}

// Summary is the priced cart alongside the fulfillment gate.
type Summary struct {
	Cart        pricing.PricedCart `json:"cart"`
	Fulfillment fulfillment.View   `json:"fulfillment"`
	CanSubmit   bool               `json:"canSubmit"`
}

// ConfirmResult pairs the confirmed handoff with the recorded order.
type ConfirmResult struct {
	Pending PendingDTO      `json:"pending"`
	Order   orders.OrderDTO `json:"order"`
}

// Service runs the checkout flow from quote to payment confirmation.
type Service interface {
	Summary(ctx context.Context, sessionID string) (*Summary, error)
	Submit(ctx context.Context, sessionID string, input SubmitInput) (*PendingDTO, error)
	GetPending(ctx context.Context, sessionID string, token uuid.UUID) (*PendingDTO, error)
	ConfirmPending(ctx context.Context, sessionID string, token uuid.UUID) (*ConfirmResult, error)
}

// ServiceParams wires the checkout service. Events and Metrics are optional.
type ServiceParams struct {
	Carts       cart.Service
	Fulfillment fulfillment.Service
	Pricing     *pricing.Engine
	Upstream    orders.Submitter
	Pending     PendingRepository
	Orders      orders.Repository
	Tx          txRunner
	Locks       locker
	Events      eventPublisher
	Metrics     outcomeCounter
	Logger      *logger.Logger
	PendingTTL  time.Duration
	LockTTL     time.Duration
	Now         func() time.Time
}

type service struct {
	carts       cart.Service
	fulfillment fulfillment.Service
	pricing     *pricing.Engine
	upstream    orders.Submitter
	pending     PendingRepository
	orders      orders.Repository
	tx          txRunner
	locks       locker
	events      eventPublisher
	metrics     outcomeCounter
	logg        *logger.Logger
	pendingTTL  time.Duration
	lockTTL     time.Duration
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Fulfillment == nil:
		return nil, fmt.Errorf("fulfillment service required")
	case params.Pricing == nil:
		return nil, fmt.Errorf("pricing engine required")
	case params.Upstream == nil:
		return nil, fmt.Errorf("order submitter required")
	case params.Pending == nil:
		return nil, fmt.Errorf("pending checkout repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Locks == nil:
		return nil, fmt.Errorf("lock store required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.PendingTTL <= 0:
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		carts:       params.Carts,
		fulfillment: params.Fulfillment,
		pricing:     params.Pricing,
		upstream:    params.Upstream,
		pending:     params.Pending,
		orders:      params.Orders,
		tx:          params.Tx,
		locks:       params.Locks,
		events:      params.Events,
		metrics:     params.Metrics,
		logg:        params.Logger,
		pendingTTL:  params.PendingTTL,
		lockTTL:     lockTTL,
		now:         now,
	}, nil
}

// Summary prices the session cart against its fulfillment choice. An empty
// cart is quoted at zero with no delivery fee.
func (s *service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view, err := s.fulfillment.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.summarize(c, view)
}

func (s *service) summarize(c cart.Cart, view fulfillment.View) (*Summary, error) {
	if c.IsEmpty() {
		return &Summary{Cart: pricing.Price(c), Fulfillment: view}, nil
	}
	priced, err := s.pricing.Quote(c, view.Config.FeeInput())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "delivery fee unavailable")
	}
	return &Summary{
		Cart:        priced,
		Fulfillment: view,
		CanSubmit:   view.CanSubmit && priced.FeeResolved,
	}, nil
}

// Submit places the order upstream and opens a pending checkout for the
// payment step. A submitting record keyed by the idempotency key is written
// before the order API is called, and the key is forwarded upstream, so a
// retry after a failure resumes that record instead of placing a second
// order. Replaying a key that already placed an order returns the original
// record. While one submit for a session is in flight, others are rejected.
func (s *service) Submit(ctx context.Context, sessionID string, input SubmitInput) (*PendingDTO, error) {
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)

	lockKey := s.locks.LockKey(lockScope, sessionID)
	acquired, err := s.locks.SetNX(ctx, lockKey, key, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout for this session is already processing")
	}
	defer func() {
		if err := s.locks.Del(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logg.Error(ctx, "release checkout lock", err)
		}
	}()

	existing, err := s.pending.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.SessionID != sessionID {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used")
		}
		if existing.Status != enums.PendingCheckoutStatusSubmitting {
			dto := toPendingDTO(*existing, s.now())
			return &dto, nil
		}
	case db.IsNotFound(err):
		existing = nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}

	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	view, err := s.fulfillment.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(c, view)
	if err != nil {
		return nil, err
	}
	if !summary.CanSubmit {
		missing := view.Missing
		if len(missing) == 0 && !summary.Cart.FeeResolved {
			missing = []string{fulfillment.FieldLocation}
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}

	payload := BuildPayload(c, view.Config, summary.Cart, input.PaymentMethod)
	pending, err := s.beginSubmission(ctx, existing, sessionID, key, payload)
	if err != nil {
		return nil, err
	}

	result, err := s.upstream.Submit(ctx, key, payload)
	if err != nil {
		s.count(OutcomeFailed)
		s.logg.Error(ctx, "order submission failed", err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order submission failed")
	}
	if result.TotalAmount != 0 && result.TotalAmount != payload.TotalAmount {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_reference": firstNonBlank(result.OrderReference, pending.OrderReference),
			"quoted_total":    payload.TotalAmount,
			"upstream_total":  result.TotalAmount,
		}), "upstream total differs from quoted total")
	}

	now := s.now().UTC()
	placed := Placement{
		UpstreamOrderID:     result.OrderID,
		OrderReference:      firstNonBlank(result.OrderReference, pending.OrderReference),
		VerificationCode:    firstNonBlank(result.VerificationCode, pending.VerificationCode),
		PaymentURL:          optional(result.PaymentURL),
		PaymentInstructions: optional(result.PaymentInstructions),
		ExpiresAt:           now.Add(s.pendingTTL),
	}
	ok, err := s.pending.CompleteSubmission(ctx, pending.Token, placed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record pending checkout")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pending checkout changed during submission")
	}
	pending.Status = enums.PendingCheckoutStatusAwaitingPayment
	pending.UpstreamOrderID = placed.UpstreamOrderID
	pending.OrderReference = placed.OrderReference
	pending.VerificationCode = placed.VerificationCode
	pending.PaymentURL = placed.PaymentURL
	pending.PaymentInstructions = placed.PaymentInstructions
	pending.ExpiresAt = placed.ExpiresAt
	pending.Payload = payload

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logg.Error(ctx, "clear cart after checkout", err)
	}
	if err := s.fulfillment.Reset(ctx, sessionID); err != nil {
		s.logg.Error(ctx, "reset fulfillment after checkout", err)
	}

	s.count(OutcomeSubmitted)
	s.publish(ctx, pubsub.EventOrderPlaced, *pending, "")
	s.logg.Info(s.logg.WithField(ctx, "order_reference", pending.OrderReference), "checkout submitted")

	dto := toPendingDTO(*pending, now)
	return &dto, nil
}

// beginSubmission writes the submitting record for key, or refreshes the
// payload of the one a failed attempt left behind.
func (s *service) beginSubmission(ctx context.Context, existing *models.PendingCheckout, sessionID, key string, payload types.CheckoutPayload) (*models.PendingCheckout, error) {
	if existing != nil {
		ok, err := s.pending.RefreshSubmission(ctx, existing.Token, payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume pending checkout")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "pending checkout changed during submission")
		}
		existing.Payload = payload
		return existing, nil
	}

	code, err := newVerificationCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	pending, err := s.pending.Create(ctx, &models.PendingCheckout{
		Token:            uuid.New(),
		IdempotencyKey:   key,
		SessionID:        sessionID,
		OrderReference:   newReference(),
		VerificationCode: code,
		Payload:          payload,
		Status:           enums.PendingCheckoutStatusSubmitting,
		ExpiresAt:        s.now().UTC().Add(s.pendingTTL),
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "idempotency key already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pending checkout")
	}
	return pending, nil
}

// GetPending returns a handoff owned by the session. An awaiting record past
// its window is expired on read.
func (s *service) GetPending(ctx context.Context, sessionID string, token uuid.UUID) (*PendingDTO, error) {
	pending, err := s.loadPending(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if pending.Status == enums.PendingCheckoutStatusAwaitingPayment && pending.IsExpired(now) {
		if err := s.expire(ctx, pending); err != nil {
			return nil, err
		}
	}
	dto := toPendingDTO(*pending, now)
	return &dto, nil
}

// ConfirmPending records the order once payment is confirmed. Confirming an
// already confirmed handoff returns the same order.
func (s *service) ConfirmPending(ctx context.Context, sessionID string, token uuid.UUID) (*ConfirmResult, error) {
	pending, err := s.loadPending(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	switch pending.Status {
	case enums.PendingCheckoutStatusConfirmed:
		return s.confirmedResult(ctx, pending, now)
	case enums.PendingCheckoutStatusExpired:
		return nil, errPendingExpired(pending)
	case enums.PendingCheckoutStatusSubmitting:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been placed yet")
	}
	if pending.IsExpired(now) {
		if err := s.expire(ctx, pending); err != nil {
			return nil, err
		}
		return nil, errPendingExpired(pending)
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.orders.WithTx(tx).Create(ctx, orderFromPending(*pending))
		if err != nil {
			return err
		}
		ok, err := s.pending.WithTx(tx).MarkConfirmed(ctx, pending.Token, created.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "pending checkout changed during confirmation")
		}
		order = created
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm pending checkout")
	}

	pending.Status = enums.PendingCheckoutStatusConfirmed
	pending.ConfirmedAt = &now
	pending.OrderID = &order.ID

	s.count(OutcomeConfirmed)
	s.publish(ctx, pubsub.EventOrderConfirmed, *pending, order.ID.String())
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "checkout confirmed")

	return &ConfirmResult{Pending: toPendingDTO(*pending, now), Order: orders.ToDTO(*order)}, nil
}

func (s *service) confirmedResult(ctx context.Context, pending *models.PendingCheckout, now time.Time) (*ConfirmResult, error) {
	if pending.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "confirmed checkout has no order")
	}
	order, err := s.orders.FindByID(ctx, *pending.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load confirmed order")
	}
	return &ConfirmResult{Pending: toPendingDTO(*pending, now), Order: orders.ToDTO(*order)}, nil
}

func (s *service) loadPending(ctx context.Context, sessionID string, token uuid.UUID) (*models.PendingCheckout, error) {
	if token == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	pending, err := s.pending.FindByToken(ctx, token)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending checkout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending checkout")
	}
	if pending.SessionID != sessionID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending checkout not found")
	}
	return pending, nil
}

func (s *service) expire(ctx context.Context, pending *models.PendingCheckout) error {
	if _, err := s.pending.MarkExpired(ctx, pending.Token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire pending checkout")
	}
	pending.Status = enums.PendingCheckoutStatusExpired
	s.count(OutcomeExpired)
	return nil
}

func (s *service) publish(ctx context.Context, eventType string, pending models.PendingCheckout, orderID string) {
	if s.events == nil {
		return
	}
	_, err := s.events.Publish(ctx, pubsub.OrderEvent{
		EventType:      eventType,
		OrderReference: pending.OrderReference,
		OrderID:        orderID,
		SessionID:      pending.SessionID,
		DeliveryMethod: pending.Payload.DeliveryMethod.String(),
		PaymentMethod:  pending.Payload.PaymentMethod.String(),
		TotalAmount:    pending.Payload.TotalAmount,
		ItemCount:      pending.Payload.Items.ItemCount(),
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		s.logg.Error(ctx, "publish order event", err)
	}
}

func (s *service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckoutOutcome(outcome)
	}
}

func orderFromPending(p models.PendingCheckout) *models.Order {
	var areaID *string
	if p.Payload.AreaID != "" {
		id := p.Payload.AreaID
		areaID = &id
	}
	return &models.Order{
		ID:               uuid.New(),
		UpstreamOrderID:  p.UpstreamOrderID,
		OrderReference:   p.OrderReference,
		VerificationCode: p.VerificationCode,
		SessionID:        p.SessionID,
		CustomerName:     p.Payload.CustomerName,
		Email:            p.Payload.Email,
		Phone:            p.Payload.Phone,
		Address:          p.Payload.Address,
		AreaID:           areaID,
		DeliveryMethod:   p.Payload.DeliveryMethod,
		PaymentMethod:    p.Payload.PaymentMethod,
		Items:            p.Payload.Items,
		Subtotal:         p.Payload.Subtotal,
		DeliveryFee:      p.Payload.DeliveryFee,
		TotalAmount:      p.Payload.TotalAmount,
		Status:           enums.OrderStatusPreparing,
	}
}

func errPendingExpired(p *models.PendingCheckout) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment window has closed").
		WithDetails(map[string]any{"expiresAt": p.ExpiresAt})
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func newReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referencePrefix + strings.ToUpper(raw[:8])
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()+100000), nil
}
