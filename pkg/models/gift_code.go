package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) IsValid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed:
		return true
	}
	return false
}

type GiftCode struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	IsGlobal      bool            `json:"isGlobal"`
	IsUsed        bool            `json:"isUsed"`
	UsedBy        *string         `json:"usedBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Usable reports whether the code may still be applied.
func (g GiftCode) Usable() bool {
	return g.IsGlobal || !g.IsUsed
}

// DiscountOn returns the discount the code grants on subtotal.
func (g GiftCode) DiscountOn(subtotal decimal.Decimal) decimal.Decimal {
	switch g.DiscountType {
	case DiscountPercentage:
		return subtotal.Mul(g.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		return g.DiscountValue
	}
	return decimal.Zero
}

// Clone copies the code, including the usedBy pointer target.
func (g GiftCode) Clone() GiftCode {
	out := g
	if g.UsedBy != nil {
		usedBy := *g.UsedBy
		out.UsedBy = &usedBy
	}
	return out
}
