package models

import "time"

// Product is a catalog entry as the storefront sees it after boundary parsing.
type Product struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Price               int64     `json:"price"`
	DiscountedPrice     int64     `json:"discountedPrice"`
	Description         string    `json:"description"`
	DetailedDescription string    `json:"detailedDescription,omitempty"`
	Images              []string  `json:"images"`
	Category            string    `json:"category,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	CustomID            string    `json:"customId,omitempty"`
}

// Clone returns a deep copy so callers never alias container state.
func (p Product) Clone() Product {
	out := p
	out.Images = append([]string(nil), p.Images...)
	if out.Images == nil {
		out.Images = []string{}
	}
	return out
}

// ProductPatch carries a partial product update; nil fields are left untouched.
type ProductPatch struct {
	Name                *string   `json:"name,omitempty"`
	Price               *int64    `json:"price,omitempty"`
	DiscountedPrice     *int64    `json:"discountedPrice,omitempty"`
	Description         *string   `json:"description,omitempty"`
	DetailedDescription *string   `json:"detailedDescription,omitempty"`
	Images              *[]string `json:"images,omitempty"`
	Category            *string   `json:"category,omitempty"`
	CustomID            *string   `json:"customId,omitempty"`
}

// Apply merges the patch into p.
func (patch ProductPatch) Apply(p *Product) {
	if p == nil {
		return
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.DiscountedPrice != nil {
		p.DiscountedPrice = *patch.DiscountedPrice
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.DetailedDescription != nil {
		p.DetailedDescription = *patch.DetailedDescription
	}
	if patch.Images != nil {
		p.Images = append([]string{}, (*patch.Images)...)
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.CustomID != nil {
		p.CustomID = *patch.CustomID
	}
}
