package controllers

import (
	"net/http"

	"github.com/atmosfood/storefront-backend/api/middleware"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
)

func sessionIDFromRequest(r *http.Request) (string, error) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, middleware.SessionHeader+" header required")
	}
	return id, nil
}
