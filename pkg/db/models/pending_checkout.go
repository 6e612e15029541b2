package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
)

// PendingCheckout carries a checkout across the payment step. A row is
// written as submitting before the order API is called and moves to
// awaiting_payment once the order is placed.
type PendingCheckout struct {
	Token               uuid.UUID                   `gorm:"column:token;type:uuid;primaryKey"`
	IdempotencyKey      string                      `gorm:"column:idempotency_key;not null;uniqueIndex"`
	SessionID           string                      `gorm:"column:session_id;not null;index"`
	UpstreamOrderID     string                      `gorm:"column:upstream_order_id;not null;default:''"`
	OrderReference      string                      `gorm:"column:order_reference;not null"`
	VerificationCode    string                      `gorm:"column:verification_code;not null"`
	Payload             types.CheckoutPayload       `gorm:"column:payload;type:jsonb;serializer:json;not null"`
	PaymentURL          *string                     `gorm:"column:payment_url"`
	PaymentInstructions *string                     `gorm:"column:payment_instructions"`
	Status              enums.PendingCheckoutStatus `gorm:"column:status;type:text;not null;default:'awaiting_payment'"`
	ExpiresAt           time.Time                   `gorm:"column:expires_at;not null;index"`
	ConfirmedAt         *time.Time                  `gorm:"column:confirmed_at"`
	OrderID             *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the payment window has closed at now.
func (p PendingCheckout) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
