// Package purchases records checkouts and lists purchase history for admins.
package purchases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/shopspring/decimal"
)

type Backend interface {
	ListPurchases(ctx context.Context) ([]models.Purchase, error)
	CreatePurchase(ctx context.Context, input backend.PurchaseInput) (models.Purchase, error)
}

type Session interface {
	Current() (models.User, bool)
}

// AddressBook resolves a shipping address id to the address snapshot.
type AddressBook interface {
	Get(id string) (models.ShippingAddress, bool)
}

type Options struct {
	Backend  Backend
	Session  Session
	Reporter notify.Reporter
	// OnComplete receives the purchased lines once the purchase is recorded;
	// the storefront settles the cart with it.
	OnComplete func(purchased []models.CartItem)
	Addresses  AddressBook
	Now        func() time.Time
}

type Container struct {
	backend    Backend
	session    Session
	reporter   notify.Reporter
	onComplete func([]models.CartItem)
	addresses  AddressBook
	now        func() time.Time

	mu        sync.RWMutex
	purchases []models.Purchase
}

func New(opts Options) (*Container, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("purchases backend required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("purchases session required")
	}
	if opts.OnComplete == nil {
		opts.OnComplete = func([]models.CartItem) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Container{
		backend:    opts.Backend,
		session:    opts.Session,
		reporter:   opts.Reporter,
		onComplete: opts.OnComplete,
		addresses:  opts.Addresses,
		now:        opts.Now,
	}, nil
}

// Add sends the checkout snapshot to the backend, keeps the purchase and runs
// the completion callback. Anonymous callers and empty carts change nothing.
func (c *Container) Add(ctx context.Context, items []models.CartItem, total decimal.Decimal, shippingAddressID string) (models.Purchase, error) {
	user, ok := c.session.Current()
	if !ok {
		return models.Purchase{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to purchase")
	}
	if len(items) == 0 {
		return models.Purchase{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	snapshot := models.CloneItems(items)
	created, err := c.backend.CreatePurchase(ctx, backend.PurchaseInputFrom(snapshot, total, shippingAddressID))
	if err != nil {
		c.reporter.Failure(ctx, "purchases.add", err, backend.Detail(err, "خطا در ثبت سفارش"))
		return models.Purchase{}, err
	}

	purchase := models.Purchase{
		ID:        created.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Items:     snapshot,
		Total:     total,
		CreatedAt: created.CreatedAt,
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = c.now().UTC()
	}
	if shippingAddressID != "" {
		if c.addresses != nil {
			if addr, ok := c.addresses.Get(shippingAddressID); ok {
				purchase.ShippingAddress = &addr
			}
		}
		if purchase.ShippingAddress == nil {
			purchase.ShippingAddress = &models.ShippingAddress{ID: shippingAddressID}
		}
	}

	c.mu.Lock()
	c.purchases = append(c.purchases, purchase)
	c.mu.Unlock()

	c.reporter.Success(ctx, "خرید موفق", "سفارش شما با موفقیت ثبت شد")
	c.onComplete(models.CloneItems(snapshot))
	return purchase.Clone(), nil
}

// Load replaces the history with the backend's purchases. Only users the
// storefront shows as admins with purchase access may load it; the backend
// still decides what they see.
func (c *Container) Load(ctx context.Context) error {
	user, ok := c.session.Current()
	if !ok || !user.Can(func(p models.AdminPermissions) bool { return p.ViewPurchases }) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "purchase history is limited to admins")
	}
	list, err := c.backend.ListPurchases(ctx)
	if err != nil {
		c.reporter.Failure(ctx, "purchases.load", err, backend.Detail(err, "خطا در دریافت سفارش‌ها"))
		return err
	}
	fresh := make([]models.Purchase, 0, len(list))
	for _, p := range list {
		fresh = append(fresh, p.Clone())
	}
	c.mu.Lock()
	c.purchases = fresh
	c.mu.Unlock()
	return nil
}

func (c *Container) List() []models.Purchase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Purchase, 0, len(c.purchases))
	for _, p := range c.purchases {
		out = append(out, p.Clone())
	}
	return out
}
