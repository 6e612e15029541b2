package orders

import (
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// OrderDTO is the order history shape returned to clients.
type OrderDTO struct {
	ID                    uuid.UUID            `json:"id"`
	OrderReference        string               `json:"orderReference"`
	VerificationCode      string               `json:"verificationCode"`
	Items                 types.OrderLines     `json:"items"`
	CustomerName          string               `json:"customerName"`
	Email                 string               `json:"email,omitempty"`
	Phone                 string               `json:"phone"`
	Address               string               `json:"address,omitempty"`
	DeliveryMethod        enums.DeliveryMethod `json:"deliveryMethod"`
	DeliveryAreaID        *string              `json:"deliveryAreaId,omitempty"`
	PaymentMethod         enums.PaymentMethod  `json:"paymentMethod"`
	Subtotal              int64                `json:"subtotal"`
	DeliveryFee           int64                `json:"deliveryFee"`
	TotalAmount           int64                `json:"totalAmount"`
	Status                enums.OrderStatus    `json:"status"`
	CreatedAt             time.Time            `json:"createdAt"`
	EstimatedDeliveryTime *time.Time           `json:"estimatedDeliveryTime,omitempty"`
}

// ToDTO maps a persisted order.
func ToDTO(o models.Order) OrderDTO {
	items := o.Items
	if items == nil {
		items = types.OrderLines{}
	}
	return OrderDTO{
		ID:                    o.ID,
		OrderReference:        o.OrderReference,
		VerificationCode:      o.VerificationCode,
		Items:                 items,
		CustomerName:          o.CustomerName,
		Email:                 o.Email,
		Phone:                 o.Phone,
		Address:               o.Address,
		DeliveryMethod:        o.DeliveryMethod,
		DeliveryAreaID:        o.AreaID,
		PaymentMethod:         o.PaymentMethod,
		Subtotal:              o.Subtotal,
		DeliveryFee:           o.DeliveryFee,
		TotalAmount:           o.TotalAmount,
		Status:                o.Status,
		CreatedAt:             o.CreatedAt,
		EstimatedDeliveryTime: o.EstimatedDeliveryAt,
	}
}

// OrderList is a page of order history.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// Stats summarizes order history.
type Stats struct {
	Total          int64 `json:"total"`
	Preparing      int64 `json:"preparing"`
	Ready          int64 `json:"ready"`
	OutForDelivery int64 `json:"outForDelivery"`
	Completed      int64 `json:"completed"`
	Cancelled      int64 `json:"cancelled"`
	TotalSpent     int64 `json:"totalSpent"`
	AverageOrder   int64 `json:"averageOrder"`
}
