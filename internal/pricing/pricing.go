package pricing

import (
	"github.com/atmosfood/storefront-backend/internal/cart"
)

// LineTotal is (unit price + protein prices) x quantity.
func LineTotal(line cart.Line) int64 {
	unit := line.UnitPrice
	for _, p := range line.Proteins {
		unit += p.Price
	}
	return unit * int64(line.Quantity)
}

// Subtotal sums LineTotal over the cart.
func Subtotal(c cart.Cart) int64 {
	var total int64
	for _, line := range c.Lines {
		total += LineTotal(line)
	}
	return total
}

// PricedLine is a cart line with its computed total.
type PricedLine struct {
	cart.Line
	LineTotal int64 `json:"lineTotal"`
}

// PricedCart is derived from a cart and a fee input on every read.
// FeeResolved is false when delivery was chosen but no area or location is
// known yet.
type PricedCart struct {
	Lines       []PricedLine `json:"lines"`
	ItemCount   int          `json:"itemCount"`
	Subtotal    int64        `json:"subtotal"`
	DeliveryFee int64        `json:"deliveryFee"`
	Total       int64        `json:"total"`
	FeeResolved bool         `json:"feeResolved"`
	FeePolicy   string       `json:"feePolicy,omitempty"`
}

// Price lays out lines and subtotal without any fee.
func Price(c cart.Cart) PricedCart {
	out := PricedCart{Lines: make([]PricedLine, 0, len(c.Lines)), ItemCount: c.ItemCount()}
	for _, line := range c.Lines {
		lt := LineTotal(line)
		out.Lines = append(out.Lines, PricedLine{Line: line, LineTotal: lt})
		out.Subtotal += lt
	}
	out.Total = out.Subtotal
	return out
}
