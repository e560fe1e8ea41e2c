package models

import "github.com/shopspring/decimal"

type MenuItem struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"image_url"`
	Rating       *float64        `json:"rating,omitempty"` // server assigned, informational
	IsBestseller bool            `json:"is_bestseller"`
	IsVegetarian bool            `json:"is_vegetarian"`
	IsSpicy      bool            `json:"is_spicy"`
}

const (
	CategoryStarters  = "Starters"
	CategoryMains     = "Mains"
	CategoryRice      = "Rice & Biryani"
	CategoryBreads    = "Breads"
	CategoryDesserts  = "Desserts"
	CategoryBeverages = "Beverages"
)

// Categories is the fixed category list in display order.
var Categories = []string{
	CategoryStarters,
	CategoryMains,
	CategoryRice,
	CategoryBreads,
	CategoryDesserts,
	CategoryBeverages,
}

func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}
