// Package cart holds the session's cart lines and the applied gift code.
package cart

import (
	"context"
	"sync"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/shopspring/decimal"
)

type Container struct {
	reporter notify.Reporter

	mu      sync.RWMutex
	items   []models.CartItem
	applied *models.GiftCode
}

func New(reporter notify.Reporter) *Container {
	return &Container{reporter: reporter}
}

// Add increments the line for product or inserts it with quantity one.
func (c *Container) Add(ctx context.Context, product models.Product) error {
	if product.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	c.mu.Lock()
	found := false
	for i := range c.items {
		if c.items[i].Product.ID == product.ID {
			c.items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		c.items = append(c.items, models.CartItem{Product: product.Clone(), Quantity: 1})
	}
	c.mu.Unlock()
	c.reporter.Success(ctx, "سبد خرید", product.Name+" به سبد خرید اضافه شد")
	return nil
}

// Remove drops the line for productID, if any.
func (c *Container) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0:0]
	for _, item := range c.items {
		if item.Product.ID != productID {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// RemoveProduct purges a deleted product from the cart.
func (c *Container) RemoveProduct(productID string) {
	c.Remove(productID)
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (c *Container) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items[i].Quantity = quantity
		}
	}
}

// Clear empties the cart and detaches the applied code.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.applied = nil
}

// Settle removes the purchased quantities and detaches the applied code.
// Lines added or increased after the snapshot was taken stay in the cart.
func (c *Container) Settle(purchased []models.CartItem) {
	bought := make(map[string]int, len(purchased))
	for _, item := range purchased {
		bought[item.Product.ID] += item.Quantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0:0]
	for _, item := range c.items {
		item.Quantity -= bought[item.Product.ID]
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.applied = nil
}

// Reset is Clear.
func (c *Container) Reset() {
	c.Clear()
}

// ApplyGiftCode attaches code, replacing any previous one.
func (c *Container) ApplyGiftCode(code models.GiftCode) {
	applied := code.Clone()
	c.mu.Lock()
	c.applied = &applied
	c.mu.Unlock()
}

func (c *Container) AppliedCode() (models.GiftCode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.applied == nil {
		return models.GiftCode{}, false
	}
	return c.applied.Clone(), true
}

func (c *Container) Items() []models.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CloneItems(c.items)
}

// Snapshot returns the lines and their totals as one consistent view.
func (c *Container) Snapshot() ([]models.CartItem, models.CartTotals) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CloneItems(c.items), Compute(c.items, c.applied)
}

func (c *Container) Totals() models.CartTotals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Compute(c.items, c.applied)
}

// Compute is the cart total law: the subtotal sums discounted line prices,
// the code's discount is subtracted and the total never drops below zero.
func Compute(items []models.CartItem, code *models.GiftCode) models.CartTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	discount := decimal.Zero
	if code != nil {
		discount = code.DiscountOn(subtotal)
	}
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return models.CartTotals{Subtotal: subtotal, Discount: discount, Total: total}
}
