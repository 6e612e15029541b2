package types

import (
	"github.com/atmosfood/storefront-backend/pkg/enums"
)

// ProteinLine is the protein snapshot carried with an order line.
type ProteinLine struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// OrderLine is a normalized cart line as submitted to the order service and
// recorded in order history.
type OrderLine struct {
	LineID     string        `json:"lineId"`
	ItemID     string        `json:"itemId"`
	Name       string        `json:"name"`
	Category   string        `json:"category,omitempty"`
	UnitPrice  int64         `json:"unitPrice"`
	Quantity   int           `json:"quantity"`
	ProteinIDs []string      `json:"proteinIds"`
	Proteins   []ProteinLine `json:"proteins,omitempty"`
	LineTotal  int64         `json:"lineTotal"`
}

// OrderLines is persisted as JSON.
type OrderLines []OrderLine

// ItemCount sums quantities across all lines.
func (l OrderLines) ItemCount() int {
	total := 0
	for _, line := range l {
		total += line.Quantity
	}
	return total
}

// CheckoutPayload is the order submission body.
type CheckoutPayload struct {
	Items          OrderLines           `json:"items"`
	CustomerName   string               `json:"customerName"`
	Email          string               `json:"email,omitempty"`
	Phone          string               `json:"phone"`
	Address        string               `json:"address,omitempty"`
	DeliveryMethod enums.DeliveryMethod `json:"deliveryMethod"`
	AreaID         string               `json:"areaId,omitempty"`
	AreaName       string               `json:"areaName,omitempty"`
	Location       *GeoPoint            `json:"location,omitempty"`
	DistanceKm     *float64             `json:"distanceKm,omitempty"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod"`
	Subtotal       int64                `json:"subtotal"`
	DeliveryFee    int64                `json:"deliveryFee"`
	TotalAmount    int64                `json:"totalAmount"`
}
