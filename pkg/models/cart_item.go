package models

import "github.com/shopspring/decimal"

// CartItem is a product snapshot plus quantity. Quantity is always at least one.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal is discountedPrice × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return decimal.NewFromInt(i.Product.DiscountedPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotals is the pure result of a cart total computation.
type CartTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// CloneItems deep-copies a cart line slice.
func CloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, CartItem{Product: item.Product.Clone(), Quantity: item.Quantity})
	}
	return out
}
