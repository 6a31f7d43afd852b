// Package storeinfo holds the storefront's display name.
package storeinfo

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
)

type Container struct {
	mu       sync.RWMutex
	name     string
	reporter notify.Reporter
}

func New(name string, reporter notify.Reporter) *Container {
	return &Container{name: strings.TrimSpace(name), reporter: reporter}
}

func (c *Container) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName renames the store. Blank names are rejected.
func (c *Container) SetName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		c.reporter.Rejected(ctx, "نام فروشگاه نمی‌تواند خالی باشد")
		return pkgerrors.New(pkgerrors.CodeValidation, "store name is required")
	}
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.reporter.Success(ctx, "تغییر نام فروشگاه", "نام فروشگاه با موفقیت تغییر کرد")
	return nil
}
