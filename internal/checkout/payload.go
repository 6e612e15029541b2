package checkout

import (
	"strings"

	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/fulfillment"
	"github.com/atmosfood/storefront-backend/internal/pricing"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
)

// OrderLines normalizes cart lines for submission.
func OrderLines(c cart.Cart) types.OrderLines {
	out := make(types.OrderLines, 0, len(c.Lines))
	for _, line := range c.Lines {
		proteins := make([]types.ProteinLine, 0, len(line.Proteins))
		for _, p := range line.Proteins {
			proteins = append(proteins, types.ProteinLine{ID: p.ID, Name: p.Name, Price: p.Price})
		}
		out = append(out, types.OrderLine{
			LineID:     line.ID,
			ItemID:     line.ItemID,
			Name:       line.Name,
			Category:   line.Category.String(),
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			ProteinIDs: line.ProteinIDs(),
			Proteins:   proteins,
			LineTotal:  pricing.LineTotal(line),
		})
	}
	return out
}

// BuildPayload assembles the order submission from the cart, the fulfillment
// choice and the quoted totals. Pickup orders carry no address or area.
func BuildPayload(c cart.Cart, cfg fulfillment.Config, priced pricing.PricedCart, method enums.PaymentMethod) types.CheckoutPayload {
	payload := types.CheckoutPayload{
		Items:          OrderLines(c),
		CustomerName:   strings.TrimSpace(cfg.Contact.Name),
		Email:          strings.ToLower(strings.TrimSpace(cfg.Contact.Email)),
		Phone:          strings.TrimSpace(cfg.Contact.Phone),
		DeliveryMethod: cfg.Method,
		PaymentMethod:  method,
		Subtotal:       priced.Subtotal,
		DeliveryFee:    priced.DeliveryFee,
		TotalAmount:    priced.Total,
	}
	if cfg.Method == enums.DeliveryMethodPickup {
		return payload
	}
	payload.Address = strings.TrimSpace(cfg.Address)
	if payload.Address == "" {
		payload.Address = cfg.ResolvedAddress
	}
	payload.AreaID = cfg.AreaID
	payload.AreaName = cfg.AreaName
	payload.Location = cfg.Location
	payload.DistanceKm = cfg.DistanceKm
	return payload
}
