package checkout

import (
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// PendingDTO is the payment handoff returned to the client. SecondsRemaining
// drives the bank transfer countdown. The client shows PaymentURL as a
// redirect or PaymentInstructions as text, whichever the order API returned.
type PendingDTO struct {
	Token               uuid.UUID                   `json:"token"`
	OrderReference      string                      `json:"orderReference"`
	VerificationCode    string                      `json:"verificationCode"`
	UpstreamOrderID     string                      `json:"upstreamOrderId,omitempty"`
	Status              enums.PendingCheckoutStatus `json:"status"`
	PaymentMethod       enums.PaymentMethod         `json:"paymentMethod"`
	PaymentURL          *string                     `json:"paymentUrl,omitempty"`
	PaymentInstructions *string                     `json:"paymentInstructions,omitempty"`
	Order               types.CheckoutPayload       `json:"order"`
	ExpiresAt           time.Time                   `json:"expiresAt"`
	SecondsRemaining    int64                       `json:"secondsRemaining"`
	ConfirmedAt         *time.Time                  `json:"confirmedAt,omitempty"`
	OrderID             *uuid.UUID                  `json:"orderId,omitempty"`
}

func toPendingDTO(p models.PendingCheckout, now time.Time) PendingDTO {
	var remaining int64
	if p.Status == enums.PendingCheckoutStatusAwaitingPayment && now.Before(p.ExpiresAt) {
		remaining = int64(p.ExpiresAt.Sub(now).Seconds())
	}
	return PendingDTO{
		Token:               p.Token,
		OrderReference:      p.OrderReference,
		VerificationCode:    p.VerificationCode,
		UpstreamOrderID:     p.UpstreamOrderID,
		Status:              p.Status,
		PaymentMethod:       p.Payload.PaymentMethod,
		PaymentURL:          p.PaymentURL,
		PaymentInstructions: p.PaymentInstructions,
		Order:               p.Payload,
		ExpiresAt:           p.ExpiresAt,
		SecondsRemaining:    remaining,
		ConfirmedAt:         p.ConfirmedAt,
		OrderID:             p.OrderID,
	}
}
