package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
)

// Order is a placed order kept for history lookups.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UpstreamOrderID     string               `gorm:"column:upstream_order_id;not null;default:''"`
	OrderReference      string               `gorm:"column:order_reference;not null;uniqueIndex"`
	VerificationCode    string               `gorm:"column:verification_code;not null"`
	SessionID           string               `gorm:"column:session_id;not null;index"`
	CustomerName        string               `gorm:"column:customer_name;not null"`
	Email               string               `gorm:"column:email;not null;default:'';index"`
	Phone               string               `gorm:"column:phone;not null"`
	Address             string               `gorm:"column:address;not null;default:''"`
	AreaID              *string              `gorm:"column:area_id"`
	DeliveryMethod      enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	PaymentMethod       enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	Items               types.OrderLines     `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Subtotal            int64                `gorm:"column:subtotal;not null"`
	DeliveryFee         int64                `gorm:"column:delivery_fee;not null;default:0"`
	TotalAmount         int64                `gorm:"column:total_amount;not null"`
	Status              enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'preparing'"`
	EstimatedDeliveryAt *time.Time           `gorm:"column:estimated_delivery_at"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
