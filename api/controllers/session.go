package controllers

import (
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/api/middleware"
	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

// sessionStorefront returns the request's storefront or answers with an
// internal error when the session middleware did not run.
func sessionStorefront(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*storefront.Storefront, bool) {
	sf := middleware.StorefrontFromContext(r.Context())
	if sf == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront session unavailable"))
		return nil, false
	}
	return sf, true
}

func notFound(what string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
}
