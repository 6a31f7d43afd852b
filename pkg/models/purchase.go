package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is an immutable checkout record.
type Purchase struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Username        string           `json:"username"`
	Items           []CartItem       `json:"items"`
	Total           decimal.Decimal  `json:"total"`
	CreatedAt       time.Time        `json:"createdAt"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
}

func (p Purchase) Clone() Purchase {
	out := p
	out.Items = CloneItems(p.Items)
	if p.ShippingAddress != nil {
		addr := *p.ShippingAddress
		out.ShippingAddress = &addr
	}
	return out
}
