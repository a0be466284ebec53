package model

import (
	"math"
	"time"
)

// MaxQuantity is the largest stock a product can hold; the column is a 32-bit INTEGER.
const MaxQuantity = math.MaxInt32

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	Quantity       int       `json:"quantity"`
	Image          *string   `json:"image"`
	SellerUsername string    `json:"sellerUsername"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProductPatch carries the fields of a partial update; nil means "leave as is".
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Image       *string
}

func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Quantity == nil && p.Image == nil
}

// Apply overwrites only the supplied fields.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	if p.Image != nil {
		product.Image = p.Image
	}
}
