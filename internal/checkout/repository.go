package checkout

import (
	"context"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingRepository persists checkouts waiting on payment.
type PendingRepository interface {
	WithTx(tx *gorm.DB) PendingRepository
	Create(ctx context.Context, pending *models.PendingCheckout) (*models.PendingCheckout, error)
	FindByToken(ctx context.Context, token uuid.UUID) (*models.PendingCheckout, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PendingCheckout, error)
	RefreshSubmission(ctx context.Context, token uuid.UUID, payload types.CheckoutPayload) (bool, error)
	CompleteSubmission(ctx context.Context, token uuid.UUID, placed Placement) (bool, error)
	MarkConfirmed(ctx context.Context, token, orderID uuid.UUID, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, token uuid.UUID) (bool, error)
	ExpireBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Placement is what the order API returned for a submitting record.
type Placement struct {
	UpstreamOrderID     string
	OrderReference      string
	VerificationCode    string
	PaymentURL          *string
	PaymentInstructions *string
	ExpiresAt           time.Time
}

type pendingRepository struct {
	db *gorm.DB
}

// NewPendingRepository builds a pending checkout repository bound to db.
func NewPendingRepository(db *gorm.DB) PendingRepository {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) WithTx(tx *gorm.DB) PendingRepository {
	if tx == nil {
		return r
	}
	return &pendingRepository{db: tx}
}

func (r *pendingRepository) Create(ctx context.Context, pending *models.PendingCheckout) (*models.PendingCheckout, error) {
	if pending.Token == uuid.Nil {
		pending.Token = uuid.New()
	}
	if pending.Status == "" {
		pending.Status = enums.PendingCheckoutStatusAwaitingPayment
	}
	if err := r.db.WithContext(ctx).Create(pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *pendingRepository) FindByToken(ctx context.Context, token uuid.UUID) (*models.PendingCheckout, error) {
	var pending models.PendingCheckout
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *pendingRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PendingCheckout, error) {
	var pending models.PendingCheckout
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

// RefreshSubmission replaces the payload of a record that has not been placed
// yet. It reports false when the record already left submitting.
func (r *pendingRepository) RefreshSubmission(ctx context.Context, token uuid.UUID, payload types.CheckoutPayload) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("token = ? AND status = ?", token, enums.PendingCheckoutStatusSubmitting).
		Select("payload", "updated_at").
		Updates(&models.PendingCheckout{Payload: payload, UpdatedAt: time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// CompleteSubmission records the placed order and opens the payment window.
// It reports false when the record was not submitting.
func (r *pendingRepository) CompleteSubmission(ctx context.Context, token uuid.UUID, placed Placement) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("token = ? AND status = ?", token, enums.PendingCheckoutStatusSubmitting).
		Updates(map[string]any{
			"status":               enums.PendingCheckoutStatusAwaitingPayment,
			"upstream_order_id":    placed.UpstreamOrderID,
			"order_reference":      placed.OrderReference,
			"verification_code":    placed.VerificationCode,
			"payment_url":          placed.PaymentURL,
			"payment_instructions": placed.PaymentInstructions,
			"expires_at":           placed.ExpiresAt,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkConfirmed flips an awaiting record to confirmed. It reports false when
// the record was no longer awaiting payment.
func (r *pendingRepository) MarkConfirmed(ctx context.Context, token, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("token = ? AND status = ?", token, enums.PendingCheckoutStatusAwaitingPayment).
		Updates(map[string]any{
			"status":       enums.PendingCheckoutStatusConfirmed,
			"confirmed_at": at,
			"order_id":     orderID,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *pendingRepository) MarkExpired(ctx context.Context, token uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("token = ? AND status = ?", token, enums.PendingCheckoutStatusAwaitingPayment).
		Update("status", enums.PendingCheckoutStatusExpired)
	return res.RowsAffected > 0, res.Error
}

// ExpireBefore expires up to limit awaiting records whose window closed
// before cutoff. A non-positive limit expires all of them.
func (r *pendingRepository) ExpireBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	sub := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Select("token").
		Where("status = ? AND expires_at <= ?", enums.PendingCheckoutStatusAwaitingPayment, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		sub = sub.Limit(limit)
	}
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("token IN (?)", sub).
		Update("status", enums.PendingCheckoutStatusExpired)
	return res.RowsAffected, res.Error
}
