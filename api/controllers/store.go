package controllers

import (
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

type storeResponse struct {
	Name string `json:"name"`
}

type storeRenameRequest struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

func StoreGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, storeResponse{Name: sf.Store.Name()})
	}
}

func StoreRename(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body storeRenameRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sf.Store.SetName(r.Context(), body.Name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, storeResponse{Name: sf.Store.Name()})
	}
}
