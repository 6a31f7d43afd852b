package models

type ShippingAddress struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	PhoneNumber string `json:"phoneNumber"`
	IsDefault   bool   `json:"isDefault"`
}
