package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	pkgAuth "github.com/angelmondragon/bazarche-storefront/pkg/auth"
	"github.com/angelmondragon/bazarche-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

// SessionResolver finds or starts the storefront behind a session id.
type SessionResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (uuid.UUID, *storefront.Storefront, bool, error)
}

// Session reads the signed session cookie and binds the session's
// storefront to the request. Missing, invalid or expired cookies start a
// new session and a fresh cookie is issued.
func Session(cfg config.SessionConfig, sessions SessionResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var requested uuid.UUID
			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				if claims, err := pkgAuth.ParseSessionToken(cfg, cookie.Value); err == nil {
					requested = claims.SessionID
				} else if logg != nil {
					logg.Info(logg.WithField(ctx, "reason", err.Error()), "session.cookie_rejected")
				}
			}

			id, sf, created, err := sessions.Resolve(ctx, requested)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start session"))
				return
			}

			if created {
				token, err := pkgAuth.MintSessionToken(cfg, time.Now(), id)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue session cookie"))
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = WithStorefront(ctx, id.String(), sf)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, id.String())
				if user, ok := sf.Users.Current(); ok {
					ctx = logg.WithUserID(ctx, user.ID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
