// Package shipping holds the signed-in user's shipping addresses. At most one
// address is the default.
package shipping

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

type Backend interface {
	ListShippingAddresses(ctx context.Context) ([]models.ShippingAddress, error)
	CreateShippingAddress(ctx context.Context, input backend.ShippingAddressInput) (models.ShippingAddress, error)
	UpdateShippingAddress(ctx context.Context, id string, input backend.ShippingAddressInput) (models.ShippingAddress, error)
	DeleteShippingAddress(ctx context.Context, id string) error
	SetDefaultShippingAddress(ctx context.Context, id string) error
}

type Session interface {
	Current() (models.User, bool)
}

type Container struct {
	backend  Backend
	session  Session
	reporter notify.Reporter

	mu        sync.RWMutex
	addresses []models.ShippingAddress
}

func New(be Backend, session Session, reporter notify.Reporter) (*Container, error) {
	if be == nil {
		return nil, fmt.Errorf("shipping backend required")
	}
	if session == nil {
		return nil, fmt.Errorf("shipping session required")
	}
	return &Container{backend: be, session: session, reporter: reporter}, nil
}

func (c *Container) requireUser() error {
	if _, ok := c.session.Current(); !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to manage shipping addresses")
	}
	return nil
}

func (c *Container) prepare(ctx context.Context, input *backend.ShippingAddressInput) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	input.Address = strings.TrimSpace(input.Address)
	input.City = strings.TrimSpace(input.City)
	input.PostalCode = strings.TrimSpace(input.PostalCode)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	if err := validation.Struct(*input); err != nil {
		c.reporter.Rejected(ctx, validation.FirstMessage(err))
		return err
	}
	return nil
}

// storeLocked replaces or appends addr and keeps a single default; callers hold c.mu.
func (c *Container) storeLocked(addr models.ShippingAddress) {
	if addr.IsDefault {
		for i := range c.addresses {
			c.addresses[i].IsDefault = false
		}
	}
	for i := range c.addresses {
		if c.addresses[i].ID == addr.ID {
			c.addresses[i] = addr
			return
		}
	}
	c.addresses = append(c.addresses, addr)
}

func (c *Container) Add(ctx context.Context, input backend.ShippingAddressInput) (models.ShippingAddress, error) {
	if err := c.prepare(ctx, &input); err != nil {
		return models.ShippingAddress{}, err
	}
	created, err := c.backend.CreateShippingAddress(ctx, input)
	if err != nil {
		c.reporter.Failure(ctx, "shipping.add", err, backend.Detail(err, "خطا در ثبت آدرس"))
		return models.ShippingAddress{}, err
	}
	c.mu.Lock()
	c.storeLocked(created)
	c.mu.Unlock()
	c.reporter.Success(ctx, "آدرس جدید", "آدرس با موفقیت ثبت شد")
	return created, nil
}

// Update replaces the address. Unknown ids are a silent no-op.
func (c *Container) Update(ctx context.Context, id string, input backend.ShippingAddressInput) (models.ShippingAddress, bool, error) {
	if err := c.prepare(ctx, &input); err != nil {
		return models.ShippingAddress{}, true, err
	}
	if _, ok := c.Get(id); !ok {
		return models.ShippingAddress{}, false, nil
	}
	updated, err := c.backend.UpdateShippingAddress(ctx, id, input)
	if err != nil {
		c.reporter.Failure(ctx, "shipping.update", err, backend.Detail(err, "خطا در ویرایش آدرس"))
		return models.ShippingAddress{}, true, err
	}
	updated.ID = id
	c.mu.Lock()
	c.storeLocked(updated)
	c.mu.Unlock()
	c.reporter.Success(ctx, "ویرایش آدرس", "آدرس با موفقیت ویرایش شد")
	return updated, true, nil
}

func (c *Container) Remove(ctx context.Context, id string) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	if _, ok := c.Get(id); !ok {
		return nil
	}
	if err := c.backend.DeleteShippingAddress(ctx, id); err != nil {
		c.reporter.Failure(ctx, "shipping.remove", err, backend.Detail(err, "خطا در حذف آدرس"))
		return err
	}
	c.mu.Lock()
	kept := make([]models.ShippingAddress, 0, len(c.addresses))
	for _, addr := range c.addresses {
		if addr.ID != id {
			kept = append(kept, addr)
		}
	}
	c.addresses = kept
	c.mu.Unlock()
	c.reporter.Success(ctx, "حذف آدرس", "آدرس با موفقیت حذف شد")
	return nil
}

// SetDefault marks id as the default address and clears the flag elsewhere.
func (c *Container) SetDefault(ctx context.Context, id string) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	addr, ok := c.Get(id)
	if !ok {
		return nil
	}
	if err := c.backend.SetDefaultShippingAddress(ctx, id); err != nil {
		c.reporter.Failure(ctx, "shipping.set_default", err, backend.Detail(err, "خطا در تنظیم آدرس پیش‌فرض"))
		return err
	}
	addr.IsDefault = true
	c.mu.Lock()
	c.storeLocked(addr)
	c.mu.Unlock()
	c.reporter.Success(ctx, "آدرس پیش‌فرض", "آدرس پیش‌فرض با موفقیت تغییر کرد")
	return nil
}

// Load replaces the list with the backend's addresses. Anonymous sessions
// are skipped without calling the backend.
func (c *Container) Load(ctx context.Context) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	list, err := c.backend.ListShippingAddresses(ctx)
	if err != nil {
		c.reporter.Failure(ctx, "shipping.load", err, backend.Detail(err, "خطا در دریافت آدرس‌ها"))
		return err
	}
	c.mu.Lock()
	c.addresses = nil
	for _, addr := range list {
		c.storeLocked(addr)
	}
	c.mu.Unlock()
	return nil
}

// Clear forgets every address; used when the user signs out.
func (c *Container) Clear() {
	c.mu.Lock()
	c.addresses = nil
	c.mu.Unlock()
}

func (c *Container) List() []models.ShippingAddress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.ShippingAddress{}, c.addresses...)
}

func (c *Container) Get(id string) (models.ShippingAddress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, addr := range c.addresses {
		if addr.ID == id {
			return addr, true
		}
	}
	return models.ShippingAddress{}, false
}

func (c *Container) Default() (models.ShippingAddress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, addr := range c.addresses {
		if addr.IsDefault {
			return addr, true
		}
	}
	return models.ShippingAddress{}, false
}
