package enums

import "fmt"

// PendingCheckoutStatus tracks a checkout waiting on the payment step.
type PendingCheckoutStatus string

const (
	PendingCheckoutStatusSubmitting      PendingCheckoutStatus = "submitting"
	PendingCheckoutStatusAwaitingPayment PendingCheckoutStatus = "awaiting_payment"
	PendingCheckoutStatusConfirmed       PendingCheckoutStatus = "confirmed"
	PendingCheckoutStatusExpired         PendingCheckoutStatus = "expired"
)

var validPendingCheckoutStatuses = []PendingCheckoutStatus{
	PendingCheckoutStatusSubmitting,
	PendingCheckoutStatusAwaitingPayment,
	PendingCheckoutStatusConfirmed,
	PendingCheckoutStatusExpired,
}

// String implements fmt.Stringer.
func (p PendingCheckoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PendingCheckoutStatus.
func (p PendingCheckoutStatus) IsValid() bool {
	for _, candidate := range validPendingCheckoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePendingCheckoutStatus converts raw input into a PendingCheckoutStatus.
func ParsePendingCheckoutStatus(value string) (PendingCheckoutStatus, error) {
	for _, candidate := range validPendingCheckoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending checkout status %q", value)
}
