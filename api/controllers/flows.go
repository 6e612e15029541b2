package controllers

import (
	"net/http"

	"github.com/atmosfood/storefront-backend/api/responses"
	"github.com/atmosfood/storefront-backend/api/validators"
	"github.com/atmosfood/storefront-backend/internal/bulkflow"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

type startFlowRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

func FlowStart(svc bulkflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload startFlowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.Start(r.Context(), sessionID, payload.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, state)
	}
}

func FlowFetch(svc bulkflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, flowID, err := flowRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.Get(r.Context(), sessionID, flowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// FlowAction applies one step of the customization state machine.
func FlowAction(svc bulkflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, flowID, err := flowRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var action bulkflow.Action
		if err := validators.DecodeJSONBody(r, &action); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.Dispatch(r.Context(), sessionID, flowID, action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func FlowConfirm(svc bulkflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, flowID, err := flowRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Confirm(r.Context(), sessionID, flowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FlowCancel(svc bulkflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, flowID, err := flowRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), sessionID, flowID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cancelled": true})
	}
}

func flowRequest(r *http.Request) (string, string, error) {
	sessionID, err := sessionIDFromRequest(r)
	if err != nil {
		return "", "", err
	}
	flowID, err := validators.RequireParam(r, "flowId")
	if err != nil {
		return "", "", err
	}
	return sessionID, flowID, nil
}
