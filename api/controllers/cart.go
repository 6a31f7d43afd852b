package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/api/validators"
	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	"github.com/angelmondragon/bazarche-storefront/pkg/format"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

type cartResponse struct {
	Items       []models.CartItem `json:"items"`
	Totals      models.CartTotals `json:"totals"`
	AppliedCode *models.GiftCode  `json:"appliedCode"`
	Display     cartDisplay       `json:"display"`
}

// cartDisplay carries the totals as the storefront prints them.
type cartDisplay struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
	Code     string `json:"code,omitempty"`
}

type cartAddRequest struct {
	ProductID string `json:"productId" validate:"notblank"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=1000"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=1000"`
}

type giftCodeApplyRequest struct {
	Code string `json:"code" validate:"notblank"`
}

func cartView(sf *storefront.Storefront) cartResponse {
	items, totals := sf.Cart.Snapshot()
	out := cartResponse{
		Items:  items,
		Totals: totals,
		Display: cartDisplay{
			Subtotal: format.DecimalPrice(totals.Subtotal),
			Discount: format.DecimalPrice(totals.Discount),
			Total:    format.DecimalPrice(totals.Total),
		},
	}
	if code, ok := sf.Cart.AppliedCode(); ok {
		out.AppliedCode = &code
		out.Display.Code = format.Discount(code)
	}
	return out
}

func CartGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, cartView(sf))
	}
}

func CartTotals(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sf.Cart.Totals())
	}
}

// CartAddItem adds a catalog product. Quantity defaults to one.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body cartAddRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, found := sf.Products.Get(body.ProductID)
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound("product"))
			return
		}
		if err := sf.Cart.Add(r.Context(), product); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Quantity > 1 {
			for _, item := range sf.Cart.Items() {
				if item.Product.ID == product.ID {
					sf.Cart.UpdateQuantity(product.ID, item.Quantity+body.Quantity-1)
				}
			}
		}
		responses.WriteSuccess(w, cartView(sf))
	}
}

// CartUpdateItem sets a line's quantity; zero removes the line.
func CartUpdateItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sf.Cart.UpdateQuantity(chi.URLParam(r, "productId"), body.Quantity)
		responses.WriteSuccess(w, cartView(sf))
	}
}

func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		sf.Cart.Remove(chi.URLParam(r, "productId"))
		responses.WriteSuccess(w, cartView(sf))
	}
}

func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		sf.Cart.Clear()
		responses.WriteSuccess(w, cartView(sf))
	}
}

func CartApplyGiftCode(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var body giftCodeApplyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := sf.GiftCodes.FindAndApply(r.Context(), body.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView(sf))
	}
}
