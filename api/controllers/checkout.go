package controllers

import (
	"net/http"
	"strings"

	"github.com/atmosfood/storefront-backend/api/middleware"
	"github.com/atmosfood/storefront-backend/api/responses"
	"github.com/atmosfood/storefront-backend/api/validators"
	checkoutsvc "github.com/atmosfood/storefront-backend/internal/checkout"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

// Checkout submits the session's cart. The response is the pending checkout
// the client uses for the payment handoff.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutsvc.SubmitInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.IdempotencyKey = strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))

		pending, err := svc.Submit(r.Context(), sessionID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, pending)
	}
}

func CheckoutPendingFetch(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token, err := validators.ParseUUIDParam(r, "token")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pending, err := svc.GetPending(r.Context(), sessionID, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pending)
	}
}

// CheckoutPendingConfirm records payment and turns the handoff into an order
// history entry. Confirming twice returns the same order.
func CheckoutPendingConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token, err := validators.ParseUUIDParam(r, "token")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ConfirmPending(r.Context(), sessionID, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
