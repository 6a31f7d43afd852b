package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/internal/giftcodes"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

func GiftCodesList(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sf.GiftCodes.List())
	}
}

func GiftCodeCreate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body giftcodes.Spec
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code, err := sf.GiftCodes.Add(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, code)
	}
}

func GiftCodeDelete(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		sf.GiftCodes.Remove(r.Context(), chi.URLParam(r, "giftCodeId"))
		responses.WriteNoContent(w)
	}
}
