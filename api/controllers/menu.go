package controllers

import (
	"net/http"
	"strings"

	"github.com/atmosfood/storefront-backend/api/responses"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

type menuReader interface {
	Menu(category enums.Category) []catalog.MenuItem
	Proteins() []catalog.Protein
}

// Menu lists menu items. Drinks are left out unless asked for by category.
func Menu(svc menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := enums.CategoryAll
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			parsed, err := enums.ParseCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").
					WithDetails(map[string]any{"field": "category"}))
				return
			}
			category = parsed
		}
		responses.WriteSuccess(w, map[string]any{"items": svc.Menu(category)})
	}
}

func MenuDrinks(svc menuReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"items": svc.Menu(enums.CategoryDrinks)})
	}
}

func Proteins(svc menuReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"proteins": svc.Proteins()})
	}
}
