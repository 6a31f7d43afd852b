package middleware

import (
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

// Capability selects one admin permission.
type Capability func(models.AdminPermissions) bool

var (
	ManageProducts   Capability = func(p models.AdminPermissions) bool { return p.ManageProducts }
	ManageCategories Capability = func(p models.AdminPermissions) bool { return p.ManageCategories }
	ManageGiftCodes  Capability = func(p models.AdminPermissions) bool { return p.ManageGiftCodes }
	ManageUsers      Capability = func(p models.AdminPermissions) bool { return p.ManageUsers }
	ViewPurchases    Capability = func(p models.AdminPermissions) bool { return p.ViewPurchases }
	ManageComments   Capability = func(p models.AdminPermissions) bool { return p.ManageComments }
)

// RequireUser rejects anonymous sessions.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sf := StorefrontFromContext(r.Context())
			if sf == nil || !sf.Users.IsAuthenticated() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability hides admin routes from sessions whose user lacks the
// permission. The backend still decides whether the call is allowed.
func RequireCapability(capability Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sf := StorefrontFromContext(r.Context())
			if sf == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
				return
			}
			user, ok := sf.Users.Current()
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
				return
			}
			if !user.Can(capability) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "permission required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
