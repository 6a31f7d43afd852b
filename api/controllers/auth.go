package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/internal/users"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

type loginRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type resetPasswordRequest struct {
	Username    string `json:"username" validate:"notblank"`
	Answer      string `json:"answer" validate:"notblank"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type securityQuestionResponse struct {
	Username string `json:"username"`
	Question string `json:"question"`
}

type meResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user"`
}

// AuthLogin signs the session in. Repeated failures lock logins for the
// client key until the lockout window passes.
func AuthLogin(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := sf.Login(r.Context(), strings.TrimSpace(body.Username), body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func AuthLogout(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		if err := sf.Logout(r.Context()); err != nil && logg != nil {
			// The local session is gone either way.
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "auth.logout.backend_failed")
		}
		responses.WriteNoContent(w)
	}
}

func AuthRegister(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body users.RegisterInput
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := sf.Users.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

func AuthRateLimitStatus(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		status, err := sf.Users.CheckLoginRateLimit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func AuthMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		user, signedIn := sf.Users.Current()
		out := meResponse{Authenticated: signedIn}
		if signedIn {
			out.User = &user
		}
		responses.WriteSuccess(w, out)
	}
}

func AuthChangePassword(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body changePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sf.Users.ChangePassword(r.Context(), body.CurrentPassword, body.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AuthSecurityQuestion(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "username is required").
				WithDetails(map[string]string{"username": "is required"}))
			return
		}
		question, found := sf.Users.SecurityQuestion(username)
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound("security question"))
			return
		}
		responses.WriteSuccess(w, securityQuestionResponse{Username: username, Question: question})
	}
}

// AuthResetPassword replaces a forgotten password after the security answer
// matches.
func AuthResetPassword(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body resetPasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		username := strings.TrimSpace(body.Username)
		if !sf.Users.VerifySecurityAnswer(username, body.Answer) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "security answer does not match"))
			return
		}
		if err := sf.Users.ResetPassword(r.Context(), username, body.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
