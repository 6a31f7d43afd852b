package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/shopspring/decimal"
)

const purchasesResource = "purchases"

// purchaseItemWire accepts both an embedded product and the flattened
// product_name/product_price columns the purchase list endpoint returns.
type purchaseItemWire struct {
	Product      json.RawMessage     `json:"product"`
	ProductName  string              `json:"product_name"`
	ProductPrice decimal.NullDecimal `json:"product_price"`
	Price        decimal.NullDecimal `json:"price"`
	Quantity     int                 `json:"quantity"`
}

func (w purchaseItemWire) model(now time.Time) models.CartItem {
	var product models.Product
	if len(w.Product) > 0 && w.Product[0] == '{' {
		if parsed, err := parseProduct(w.Product, now); err == nil {
			product = parsed
		}
	} else if len(w.Product) > 0 {
		var id flexID
		if err := id.UnmarshalJSON(w.Product); err == nil {
			product.ID = string(id)
		}
	}
	if product.Name == "" {
		product.Name = w.ProductName
	}
	listPrice, hasList := firstDecimal(w.ProductPrice, w.Price)
	if hasList && product.Price == 0 {
		product.Price = wholeUnits(listPrice)
	}
	if paid, ok := firstDecimal(w.Price, w.ProductPrice); ok {
		product.DiscountedPrice = wholeUnits(paid)
	} else if product.DiscountedPrice == 0 {
		product.DiscountedPrice = product.Price
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	quantity := w.Quantity
	if quantity < 1 {
		quantity = 1
	}
	return models.CartItem{Product: product, Quantity: quantity}
}

type shippingRef struct {
	address *models.ShippingAddress
}

func (s *shippingRef) UnmarshalJSON(data []byte) error {
	s.address = nil
	if len(data) == 0 || data[0] != '{' {
		var id flexID
		if err := id.UnmarshalJSON(data); err == nil && id != "" {
			s.address = &models.ShippingAddress{ID: string(id)}
		}
		return nil
	}
	var w shippingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	addr := w.model()
	s.address = &addr
	return nil
}

type purchaseWire struct {
	ID              flexID              `json:"id"`
	User            reference           `json:"user"`
	Username        string              `json:"username"`
	Items           []purchaseItemWire  `json:"items"`
	Total           decimal.NullDecimal `json:"total"`
	TotalPrice      decimal.NullDecimal `json:"total_price"`
	CreatedAt       flexTime            `json:"createdAt"`
	CreatedAtSnake  flexTime            `json:"created_at"`
	ShippingAddress shippingRef         `json:"shipping_address"`
}

func (w purchaseWire) model(now time.Time) models.Purchase {
	items := make([]models.CartItem, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, item.model(now))
	}
	total, ok := firstDecimal(w.Total, w.TotalPrice)
	if !ok {
		total = decimal.Zero
		for _, item := range items {
			total = total.Add(item.LineTotal())
		}
	}
	return models.Purchase{
		ID:              string(w.ID),
		UserID:          firstNonEmpty(w.User.ID, w.User.Text),
		Username:        firstNonEmpty(w.Username, w.User.Username),
		Items:           items,
		Total:           total,
		CreatedAt:       firstTime(now, w.CreatedAt, w.CreatedAtSnake),
		ShippingAddress: w.ShippingAddress.address,
	}
}

// PurchaseItemInput is one purchased line as sent to the backend.
type PurchaseItemInput struct {
	Product  string          `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// PurchaseInput is the checkout snapshot sent to the backend.
type PurchaseInput struct {
	Items           []PurchaseItemInput `json:"items"`
	Total           decimal.Decimal     `json:"total"`
	ShippingAddress *string             `json:"shipping_address,omitempty"`
}

// PurchaseInputFrom snapshots cart lines into a purchase payload.
func PurchaseInputFrom(items []models.CartItem, total decimal.Decimal, shippingAddressID string) PurchaseInput {
	input := PurchaseInput{Items: make([]PurchaseItemInput, 0, len(items)), Total: total}
	for _, item := range items {
		input.Items = append(input.Items, PurchaseItemInput{
			Product:  item.Product.ID,
			Quantity: item.Quantity,
			Price:    decimal.NewFromInt(item.Product.DiscountedPrice),
		})
	}
	if shippingAddressID != "" {
		id := shippingAddressID
		input.ShippingAddress = &id
	}
	return input
}

func (c *Client) ListPurchases(ctx context.Context) ([]models.Purchase, error) {
	var wires []purchaseWire
	if err := c.doJSON(ctx, http.MethodGet, purchasesResource, resourcePath(purchasesResource, ""), nil, nil, &wires); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]models.Purchase, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.model(now))
	}
	return out, nil
}

func (c *Client) GetPurchase(ctx context.Context, id string) (models.Purchase, error) {
	var w purchaseWire
	if err := c.doJSON(ctx, http.MethodGet, purchasesResource, resourcePath(purchasesResource, id), nil, nil, &w); err != nil {
		return models.Purchase{}, err
	}
	return w.model(c.now()), nil
}

// CreatePurchase records a checkout and returns the server's id and timestamp
// in the returned purchase; items and total echo the input when omitted.
func (c *Client) CreatePurchase(ctx context.Context, input PurchaseInput) (models.Purchase, error) {
	var w purchaseWire
	if err := c.doJSON(ctx, http.MethodPost, purchasesResource, resourcePath(purchasesResource, ""), nil, input, &w); err != nil {
		return models.Purchase{}, err
	}
	return w.model(c.now()), nil
}
