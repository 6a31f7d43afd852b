package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

type commentRequest struct {
	Text string `json:"text"`
}

// CommentsForProduct answers with the comments known to the session and
// refreshes them in the background. The product stays on the poll list so
// later requests see new comments from other users.
func CommentsForProduct(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		productID := chi.URLParam(r, "productId")
		sf.Comments.Watch(productID)
		responses.WriteSuccess(w, sf.Comments.ForProduct(productID))
	}
}

func CommentCreate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body commentRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		comment, err := sf.Comments.AddComment(r.Context(), chi.URLParam(r, "productId"), body.Text)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, comment)
	}
}

func ReplyCreate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body commentRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reply, found, err := sf.Comments.AddReply(r.Context(), chi.URLParam(r, "commentId"), body.Text)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound("comment"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reply)
	}
}
