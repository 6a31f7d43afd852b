package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

func CategoriesList(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sf.Categories.List())
	}
}

func CategoryCreate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body categoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := sf.Categories.Add(r.Context(), body.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

// CategoryRename renames the category and moves its products along.
func CategoryRename(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body categoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id := chi.URLParam(r, "categoryId")
		if _, found := sf.Categories.Get(id); !found {
			responses.WriteError(r.Context(), logg, w, notFound("category"))
			return
		}
		if err := sf.RenameCategory(r.Context(), id, body.Name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, _ := sf.Categories.Get(id)
		responses.WriteSuccess(w, category)
	}
}

func CategoryDelete(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		if err := sf.Categories.Remove(r.Context(), chi.URLParam(r, "categoryId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
