// Package products holds the storefront catalog and keeps custom ids unique.
package products

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/angelmondragon/bazarche-storefront/pkg/validation"
)

// Backend is the product resource of the REST backend.
type Backend interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	FindProductByCustomID(ctx context.Context, customID string) (models.Product, error)
	CreateProduct(ctx context.Context, input backend.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, input backend.ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type Container struct {
	backend  Backend
	reporter notify.Reporter

	mu       sync.RWMutex
	products []models.Product
}

func New(be Backend, reporter notify.Reporter, seed ...models.Product) (*Container, error) {
	if be == nil {
		return nil, fmt.Errorf("products backend required")
	}
	c := &Container{backend: be, reporter: reporter}
	for _, p := range seed {
		c.products = append(c.products, p.Clone())
	}
	return c, nil
}

type productInput struct {
	Name            string `json:"name" validate:"notblank,max=200"`
	Price           int64  `json:"price" validate:"gte=0"`
	DiscountedPrice int64  `json:"discountedPrice" validate:"gte=0,ltefield=Price"`
	Description     string `json:"description" validate:"max=5000"`
	CustomID        string `json:"customId" validate:"max=100"`
}

func normalize(p *models.Product) {
	p.Name = strings.TrimSpace(p.Name)
	p.CustomID = strings.TrimSpace(p.CustomID)
	if p.DiscountedPrice == 0 {
		p.DiscountedPrice = p.Price
	}
	if p.Images == nil {
		p.Images = []string{}
	}
}

func validate(p models.Product) error {
	return validation.Struct(productInput{
		Name:            p.Name,
		Price:           p.Price,
		DiscountedPrice: p.DiscountedPrice,
		Description:     p.Description,
		CustomID:        p.CustomID,
	})
}

// customIDTakenLocked reports whether another product owns customID; callers hold c.mu.
func (c *Container) customIDTakenLocked(customID, exceptID string) bool {
	if customID == "" {
		return false
	}
	for _, p := range c.products {
		if p.CustomID == customID && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (c *Container) indexLocked(id string) int {
	for i := range c.products {
		if c.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Container) rejectCustomID(ctx context.Context, customID string) error {
	c.reporter.Rejected(ctx, "شناسه سفارشی \""+customID+"\" قبلاً استفاده شده است")
	return pkgerrors.New(pkgerrors.CodeConflict, "custom id already in use").
		WithDetails(map[string]string{"customId": customID})
}

// Add creates the product on the backend and appends the server's copy.
func (c *Container) Add(ctx context.Context, product models.Product) (models.Product, error) {
	normalize(&product)
	if err := validate(product); err != nil {
		c.reporter.Rejected(ctx, validation.FirstMessage(err))
		return models.Product{}, err
	}

	c.mu.RLock()
	taken := c.customIDTakenLocked(product.CustomID, "")
	c.mu.RUnlock()
	if taken {
		return models.Product{}, c.rejectCustomID(ctx, product.CustomID)
	}

	created, err := c.backend.CreateProduct(ctx, backend.ProductInputFrom(product))
	if err != nil {
		c.reporter.Failure(ctx, "products.add", err, backend.Detail(err, "خطا در افزودن محصول"))
		return models.Product{}, err
	}

	c.mu.Lock()
	if c.customIDTakenLocked(created.CustomID, created.ID) {
		c.mu.Unlock()
		return models.Product{}, c.rejectCustomID(ctx, created.CustomID)
	}
	c.products = append(c.products, created.Clone())
	c.mu.Unlock()

	c.reporter.Success(ctx, "افزودن محصول", "محصول \""+created.Name+"\" با موفقیت اضافه شد")
	return created.Clone(), nil
}

// Edit merges patch into the product and replaces it on the backend. An
// unknown id is a silent no-op and returns ok=false.
func (c *Container) Edit(ctx context.Context, id string, patch models.ProductPatch) (models.Product, bool, error) {
	c.mu.RLock()
	idx := c.indexLocked(id)
	var merged models.Product
	if idx >= 0 {
		merged = c.products[idx].Clone()
	}
	c.mu.RUnlock()
	if idx < 0 {
		return models.Product{}, false, nil
	}

	patch.Apply(&merged)
	if patch.DiscountedPrice == nil && patch.Price != nil && merged.DiscountedPrice > merged.Price {
		merged.DiscountedPrice = merged.Price
	}
	normalize(&merged)
	if err := validate(merged); err != nil {
		c.reporter.Rejected(ctx, validation.FirstMessage(err))
		return models.Product{}, true, err
	}
	if patch.CustomID != nil {
		c.mu.RLock()
		taken := c.customIDTakenLocked(merged.CustomID, id)
		c.mu.RUnlock()
		if taken {
			return models.Product{}, true, c.rejectCustomID(ctx, merged.CustomID)
		}
	}

	updated, err := c.backend.UpdateProduct(ctx, id, backend.ProductInputFrom(merged))
	if err != nil {
		c.reporter.Failure(ctx, "products.edit", err, backend.Detail(err, "خطا در ویرایش محصول"))
		return models.Product{}, true, err
	}
	if updated.ID == "" {
		updated = merged
	}
	updated.ID = id
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = merged.CreatedAt
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.products[i] = updated.Clone()
	}
	c.mu.Unlock()

	c.reporter.Success(ctx, "ویرایش محصول", "محصول با موفقیت ویرایش شد")
	return updated.Clone(), true, nil
}

// Remove deletes the product on the backend and then from the catalog. Cart
// lines and comments are purged by the caller.
func (c *Container) Remove(ctx context.Context, id string) error {
	if err := c.backend.DeleteProduct(ctx, id); err != nil {
		c.reporter.Failure(ctx, "products.remove", err, backend.Detail(err, "خطا در حذف محصول"))
		return err
	}
	c.mu.Lock()
	kept := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.products = kept
	c.mu.Unlock()

	c.reporter.Success(ctx, "حذف محصول", "محصول با موفقیت حذف شد")
	return nil
}

// Load replaces the catalog with the backend's list.
func (c *Container) Load(ctx context.Context) error {
	list, err := c.backend.ListProducts(ctx)
	if err != nil {
		c.reporter.Failure(ctx, "products.load", err, backend.Detail(err, "خطا در دریافت محصولات"))
		return err
	}
	fresh := make([]models.Product, 0, len(list))
	for _, p := range list {
		fresh = append(fresh, p.Clone())
	}
	c.mu.Lock()
	c.products = fresh
	c.mu.Unlock()
	return nil
}

func (c *Container) List() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Clone())
	}
	return out
}

func (c *Container) Get(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.products[i].Clone(), true
	}
	return models.Product{}, false
}

// GetByCustomID looks the custom id up in the local catalog.
func (c *Container) GetByCustomID(customID string) (models.Product, bool) {
	customID = strings.TrimSpace(customID)
	if customID == "" {
		return models.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.CustomID == customID {
			return p.Clone(), true
		}
	}
	return models.Product{}, false
}

// FetchByCustomID serves from the catalog when possible and otherwise asks
// the backend, remembering the result.
func (c *Container) FetchByCustomID(ctx context.Context, customID string) (models.Product, error) {
	if p, ok := c.GetByCustomID(customID); ok {
		return p, nil
	}
	p, err := c.backend.FindProductByCustomID(ctx, customID)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			c.reporter.Failure(ctx, "products.fetch_by_custom_id", err, backend.Detail(err, "خطا در دریافت محصول"))
		}
		return models.Product{}, err
	}
	c.mu.Lock()
	if c.indexLocked(p.ID) < 0 && !c.customIDTakenLocked(p.CustomID, p.ID) {
		c.products = append(c.products, p.Clone())
	}
	c.mu.Unlock()
	return p.Clone(), nil
}

// InCategory returns the ids of products whose category equals name.
func (c *Container) InCategory(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, p := range c.products {
		if p.Category == name {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
