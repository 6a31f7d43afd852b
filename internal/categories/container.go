// Package categories holds the category list. A category cannot be removed
// while a product still references its name.
package categories

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
)

type Backend interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (models.Category, error)
	UpdateCategory(ctx context.Context, id, name string) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Catalog answers which products reference a category name.
type Catalog interface {
	InCategory(name string) []string
}

type Container struct {
	backend  Backend
	catalog  Catalog
	reporter notify.Reporter

	mu         sync.RWMutex
	categories []models.Category
}

func New(be Backend, catalog Catalog, reporter notify.Reporter, seed ...models.Category) (*Container, error) {
	if be == nil {
		return nil, fmt.Errorf("categories backend required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	return &Container{
		backend:    be,
		catalog:    catalog,
		reporter:   reporter,
		categories: append([]models.Category(nil), seed...),
	}, nil
}

const maxNameLength = 100

func (c *Container) checkName(ctx context.Context, name, exceptID string) error {
	if name == "" {
		c.reporter.Rejected(ctx, "نام دسته‌بندی نمی‌تواند خالی باشد")
		return pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	if len([]rune(name)) > maxNameLength {
		c.reporter.Rejected(ctx, "نام دسته‌بندی بیش از حد طولانی است")
		return pkgerrors.New(pkgerrors.CodeValidation, "category name is too long")
	}
	c.mu.RLock()
	taken := false
	for _, cat := range c.categories {
		if cat.Name == name && cat.ID != exceptID {
			taken = true
			break
		}
	}
	c.mu.RUnlock()
	if taken {
		c.reporter.Rejected(ctx, "دسته‌بندی با این نام قبلاً ایجاد شده است")
		return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
	}
	return nil
}

func (c *Container) Add(ctx context.Context, name string) (models.Category, error) {
	name = strings.TrimSpace(name)
	if err := c.checkName(ctx, name, ""); err != nil {
		return models.Category{}, err
	}
	created, err := c.backend.CreateCategory(ctx, name)
	if err != nil {
		c.reporter.Failure(ctx, "categories.add", err, backend.Detail(err, "خطا در افزودن دسته‌بندی"))
		return models.Category{}, err
	}
	c.mu.Lock()
	c.categories = append(c.categories, created)
	c.mu.Unlock()
	c.reporter.Success(ctx, "دسته‌بندی جدید", "دسته‌بندی با موفقیت اضافه شد")
	return created, nil
}

// Remove deletes the category unless a product still uses its name.
// Unknown ids are ignored.
func (c *Container) Remove(ctx context.Context, id string) error {
	target, ok := c.Get(id)
	if !ok {
		return nil
	}
	if inUse := c.catalog.InCategory(target.Name); len(inUse) > 0 {
		c.reporter.Rejected(ctx, "این دسته‌بندی دارای محصولاتی است و نمی‌تواند حذف شود")
		return pkgerrors.New(pkgerrors.CodeConflict, "category is referenced by products").
			WithDetails(map[string]any{"productIds": inUse})
	}
	if err := c.backend.DeleteCategory(ctx, id); err != nil {
		c.reporter.Failure(ctx, "categories.remove", err, backend.Detail(err, "خطا در حذف دسته‌بندی"))
		return err
	}
	c.mu.Lock()
	kept := make([]models.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if cat.ID != id {
			kept = append(kept, cat)
		}
	}
	c.categories = kept
	c.mu.Unlock()
	c.reporter.Success(ctx, "حذف دسته‌بندی", "دسته‌بندی با موفقیت حذف شد")
	return nil
}

// Edit renames the category and returns its previous name. Products are not
// touched here; the storefront cascades the rename. found is false for an
// unknown id.
func (c *Container) Edit(ctx context.Context, id, name string) (oldName string, found bool, err error) {
	name = strings.TrimSpace(name)
	if err := c.checkName(ctx, name, id); err != nil {
		return "", true, err
	}
	current, ok := c.Get(id)
	if !ok {
		return "", false, nil
	}
	if _, err := c.backend.UpdateCategory(ctx, id, name); err != nil {
		c.reporter.Failure(ctx, "categories.edit", err, backend.Detail(err, "خطا در ویرایش دسته‌بندی"))
		return "", true, err
	}
	c.mu.Lock()
	for i := range c.categories {
		if c.categories[i].ID == id {
			c.categories[i].Name = name
		}
	}
	c.mu.Unlock()
	return current.Name, true, nil
}

// Load replaces the list with the backend's categories.
func (c *Container) Load(ctx context.Context) error {
	list, err := c.backend.ListCategories(ctx)
	if err != nil {
		c.reporter.Failure(ctx, "categories.load", err, backend.Detail(err, "خطا در دریافت دسته‌بندی‌ها"))
		return err
	}
	c.mu.Lock()
	c.categories = append([]models.Category(nil), list...)
	c.mu.Unlock()
	return nil
}

func (c *Container) List() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Category{}, c.categories...)
}

func (c *Container) Get(id string) (models.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return models.Category{}, false
}
