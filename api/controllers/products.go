package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

type productCreateRequest struct {
	Name                string   `json:"name" validate:"notblank,max=200"`
	Price               int64    `json:"price" validate:"gte=0"`
	DiscountedPrice     int64    `json:"discountedPrice" validate:"gte=0"`
	Description         string   `json:"description" validate:"max=5000"`
	DetailedDescription string   `json:"detailedDescription"`
	Images              []string `json:"images" validate:"omitempty,dive,url"`
	Category            string   `json:"category"`
	CustomID            string   `json:"customId" validate:"max=100"`
}

func (req productCreateRequest) toModel() models.Product {
	return models.Product{
		Name:                req.Name,
		Price:               req.Price,
		DiscountedPrice:     req.DiscountedPrice,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		Images:              req.Images,
		Category:            req.Category,
		CustomID:            req.CustomID,
	}
}

func ProductsList(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sf.Products.List())
	}
}

func ProductGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		product, found := sf.Products.Get(chi.URLParam(r, "productId"))
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound("product"))
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductByCustomID resolves a vanity link, asking the backend when the
// product is not in the session's catalog yet.
func ProductByCustomID(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		product, err := sf.Products.FetchByCustomID(r.Context(), chi.URLParam(r, "customId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductCreate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body productCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := sf.Products.Add(r.Context(), body.toModel())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var patch models.ProductPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, found, err := sf.Products.Edit(r.Context(), chi.URLParam(r, "productId"), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound("product"))
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductDelete removes the product and purges it from the session's cart
// and comments.
func ProductDelete(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		if err := sf.RemoveProduct(r.Context(), chi.URLParam(r, "productId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
