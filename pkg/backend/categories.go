package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

const categoriesResource = "categories"

type categoryWire struct {
	ID             flexID   `json:"id"`
	Name           string   `json:"name"`
	CreatedAt      flexTime `json:"createdAt"`
	CreatedAtSnake flexTime `json:"created_at"`
}

func (w categoryWire) model(now time.Time) models.Category {
	return models.Category{
		ID:        string(w.ID),
		Name:      w.Name,
		CreatedAt: firstTime(now, w.CreatedAt, w.CreatedAtSnake),
	}
}

type categoryInput struct {
	Name string `json:"name"`
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var wires []categoryWire
	if err := c.doJSON(ctx, http.MethodGet, categoriesResource, resourcePath(categoriesResource, ""), nil, nil, &wires); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]models.Category, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.model(now))
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	var w categoryWire
	if err := c.doJSON(ctx, http.MethodPost, categoriesResource, resourcePath(categoriesResource, ""), nil, categoryInput{Name: name}, &w); err != nil {
		return models.Category{}, err
	}
	return w.model(c.now()), nil
}

func (c *Client) UpdateCategory(ctx context.Context, id, name string) (models.Category, error) {
	var w categoryWire
	if err := c.doJSON(ctx, http.MethodPut, categoriesResource, resourcePath(categoriesResource, id), nil, categoryInput{Name: name}, &w); err != nil {
		return models.Category{}, err
	}
	return w.model(c.now()), nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, categoriesResource, resourcePath(categoriesResource, id), nil, nil, nil)
}
