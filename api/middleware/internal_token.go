package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/atmosfood/storefront-backend/api/responses"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

const internalTokenHeader = "X-Internal-Token"

// InternalToken guards kitchen-side routes with a shared secret. An empty
// token rejects every request.
func InternalToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get(internalTokenHeader)))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "not found"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
