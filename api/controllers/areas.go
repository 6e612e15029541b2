package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/atmosfood/storefront-backend/api/responses"
	"github.com/atmosfood/storefront-backend/api/validators"
	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

type areaPicker interface {
	LGAs() []areas.LGA
	Kitchen() (areas.Area, bool)
}

type areaSuggester interface {
	Suggest(ctx context.Context, req address.SuggestRequest) ([]address.Suggestion, error)
}

type areasResponse struct {
	LGAs    []areas.LGA `json:"lgas"`
	Kitchen *areas.Area `json:"kitchen,omitempty"`
}

// Areas returns the two-level picker data in table order.
func Areas(table areaPicker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := areasResponse{LGAs: table.LGAs()}
		if kitchen, ok := table.Kitchen(); ok {
			resp.Kitchen = &kitchen
		}
		responses.WriteSuccess(w, resp)
	}
}

// AreaSuggest autocompletes area names from local data only.
func AreaSuggest(svc areaSuggester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 5, 1, 20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := validators.QueryText(r, "q", 100)
		suggestions, err := svc.Suggest(r.Context(), address.SuggestRequest{Query: strings.TrimSpace(query), Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"suggestions": suggestions})
	}
}
