package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/shopspring/decimal"
)

const productsResource = "products"

type productWire struct {
	ID                       flexID              `json:"id"`
	Name                     string              `json:"name"`
	Price                    decimal.NullDecimal `json:"price"`
	DiscountedPrice          decimal.NullDecimal `json:"discountedPrice"`
	DiscountedPriceSnake     decimal.NullDecimal `json:"discounted_price"`
	Description              string              `json:"description"`
	DetailedDescription      string              `json:"detailedDescription"`
	DetailedDescriptionSnake string              `json:"detailed_description"`
	Images                   []imageRef          `json:"images"`
	Category                 reference           `json:"category"`
	CategoryName             string              `json:"category_name"`
	CreatedAt                flexTime            `json:"createdAt"`
	CreatedAtSnake           flexTime            `json:"created_at"`
	CustomID                 *string             `json:"customId"`
	CustomIDSnake            *string             `json:"custom_id"`
}

func (w productWire) model(now time.Time) models.Product {
	price, _ := firstDecimal(w.Price)
	discounted, ok := firstDecimal(w.DiscountedPrice, w.DiscountedPriceSnake)
	if !ok {
		discounted = price
	}
	images := make([]string, 0, len(w.Images))
	for _, img := range w.Images {
		if s := strings.TrimSpace(string(img)); s != "" {
			images = append(images, s)
		}
	}
	customID := ""
	for _, candidate := range []*string{w.CustomID, w.CustomIDSnake} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			customID = strings.TrimSpace(*candidate)
			break
		}
	}
	return models.Product{
		ID:                  string(w.ID),
		Name:                w.Name,
		Price:               wholeUnits(price),
		DiscountedPrice:     wholeUnits(discounted),
		Description:         w.Description,
		DetailedDescription: firstNonEmpty(w.DetailedDescription, w.DetailedDescriptionSnake),
		Images:              images,
		Category:            categoryName(w.CategoryName, w.Category),
		CreatedAt:           firstTime(now, w.CreatedAt, w.CreatedAtSnake),
		CustomID:            customID,
	}
}

// categoryName prefers an explicit name, then an embedded object's name,
// then a bare string. A bare numeric id is kept as the reference.
func categoryName(explicit string, ref reference) string {
	return firstNonEmpty(explicit, ref.Name, ref.Text, ref.ID)
}

func parseProduct(raw json.RawMessage, now time.Time) (models.Product, error) {
	var w productWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Product{}, err
	}
	return w.model(now), nil
}

// ProductInput is the payload for creating or replacing a product.
type ProductInput struct {
	Name                string   `json:"name"`
	Price               int64    `json:"price"`
	DiscountedPrice     int64    `json:"discountedPrice"`
	Description         string   `json:"description"`
	DetailedDescription string   `json:"detailedDescription,omitempty"`
	Images              []string `json:"images"`
	Category            string   `json:"category,omitempty"`
	CustomID            string   `json:"customId,omitempty"`
}

// ProductInputFrom builds a payload from a normalized product.
func ProductInputFrom(p models.Product) ProductInput {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductInput{
		Name:                p.Name,
		Price:               p.Price,
		DiscountedPrice:     p.DiscountedPrice,
		Description:         p.Description,
		DetailedDescription: p.DetailedDescription,
		Images:              images,
		Category:            p.Category,
		CustomID:            p.CustomID,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	return c.listProducts(ctx, nil)
}

func (c *Client) listProducts(ctx context.Context, query url.Values) ([]models.Product, error) {
	var wires []productWire
	if err := c.doJSON(ctx, http.MethodGet, productsResource, resourcePath(productsResource, ""), query, nil, &wires); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]models.Product, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.model(now))
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, http.MethodGet, productsResource, resourcePath(productsResource, id), nil, nil, &w); err != nil {
		return models.Product{}, err
	}
	return w.model(c.now()), nil
}

// FindProductByCustomID asks the backend to filter by custom_id and falls back
// to scanning the full list when no returned product carries customID. Backends
// that ignore the filter answer with the whole catalog.
func (c *Client) FindProductByCustomID(ctx context.Context, customID string) (models.Product, error) {
	customID = strings.TrimSpace(customID)
	if customID == "" {
		return models.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "custom id is required")
	}
	filtered, err := c.listProducts(ctx, url.Values{"custom_id": []string{customID}})
	if err != nil {
		return models.Product{}, err
	}
	if p, ok := findCustomID(filtered, customID); ok {
		return p, nil
	}
	all, err := c.ListProducts(ctx)
	if err != nil {
		return models.Product{}, err
	}
	if p, ok := findCustomID(all, customID); ok {
		return p, nil
	}
	return models.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func findCustomID(products []models.Product, customID string) (models.Product, bool) {
	for _, p := range products {
		if p.CustomID == customID {
			return p, true
		}
	}
	return models.Product{}, false
}

func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (models.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, http.MethodPost, productsResource, resourcePath(productsResource, ""), nil, input, &w); err != nil {
		return models.Product{}, err
	}
	return w.model(c.now()), nil
}

// UpdateProduct replaces the product with input (PUT semantics).
func (c *Client) UpdateProduct(ctx context.Context, id string, input ProductInput) (models.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, http.MethodPut, productsResource, resourcePath(productsResource, id), nil, input, &w); err != nil {
		return models.Product{}, err
	}
	return w.model(c.now()), nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, productsResource, resourcePath(productsResource, id), nil, nil, nil)
}
