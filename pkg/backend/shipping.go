package backend

import (
	"context"
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

const shippingResource = "shipping-addresses"

type shippingWire struct {
	ID               flexID `json:"id"`
	Address          string `json:"address"`
	City             string `json:"city"`
	PostalCode       string `json:"postalCode"`
	PostalCodeSnake  string `json:"postal_code"`
	PhoneNumber      string `json:"phoneNumber"`
	PhoneNumberSnake string `json:"phone_number"`
	IsDefault        *bool  `json:"isDefault"`
	IsDefaultSnake   *bool  `json:"is_default"`
}

func (w shippingWire) model() models.ShippingAddress {
	isDefault := false
	for _, candidate := range []*bool{w.IsDefault, w.IsDefaultSnake} {
		if candidate != nil {
			isDefault = *candidate
			break
		}
	}
	return models.ShippingAddress{
		ID:          string(w.ID),
		Address:     w.Address,
		City:        w.City,
		PostalCode:  firstNonEmpty(w.PostalCode, w.PostalCodeSnake),
		PhoneNumber: firstNonEmpty(w.PhoneNumber, w.PhoneNumberSnake),
		IsDefault:   isDefault,
	}
}

// ShippingAddressInput is the payload for creating or replacing an address.
type ShippingAddressInput struct {
	Address     string `json:"address" validate:"required,max=500"`
	City        string `json:"city" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=20"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
	IsDefault   bool   `json:"is_default"`
}

func (c *Client) ListShippingAddresses(ctx context.Context) ([]models.ShippingAddress, error) {
	var wires []shippingWire
	if err := c.doJSON(ctx, http.MethodGet, shippingResource, resourcePath(shippingResource, ""), nil, nil, &wires); err != nil {
		return nil, err
	}
	out := make([]models.ShippingAddress, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.model())
	}
	return out, nil
}

func (c *Client) CreateShippingAddress(ctx context.Context, input ShippingAddressInput) (models.ShippingAddress, error) {
	var w shippingWire
	if err := c.doJSON(ctx, http.MethodPost, shippingResource, resourcePath(shippingResource, ""), nil, input, &w); err != nil {
		return models.ShippingAddress{}, err
	}
	return w.model(), nil
}

func (c *Client) UpdateShippingAddress(ctx context.Context, id string, input ShippingAddressInput) (models.ShippingAddress, error) {
	var w shippingWire
	if err := c.doJSON(ctx, http.MethodPut, shippingResource, resourcePath(shippingResource, id), nil, input, &w); err != nil {
		return models.ShippingAddress{}, err
	}
	return w.model(), nil
}

func (c *Client) DeleteShippingAddress(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, shippingResource, resourcePath(shippingResource, id), nil, nil, nil)
}

func (c *Client) SetDefaultShippingAddress(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, shippingResource, resourcePath(shippingResource, id, "set-default"), nil, nil, nil)
}
